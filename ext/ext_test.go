package ext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncAdaptsEntryPoints(t *testing.T) {
	calls := 0
	e := Func(
		func() string { return "Counter" },
		func() *ClassDescriptor {
			calls++
			return &ClassDescriptor{Methods: map[string]Method{"b": nil, "a": nil}}
		},
	)

	assert.Equal(t, "Counter", e.Name())
	d := e.BuildDescriptor()
	require.NotNil(t, d)
	assert.Equal(t, []string{"a", "b"}, d.MethodNames())
	assert.Equal(t, 1, calls)
}

func TestRegisterAndLookup(t *testing.T) {
	e := Func(func() string { return "Thing" }, func() *ClassDescriptor { return &ClassDescriptor{} })
	Register("ext-test-thing", e)

	got, ok := Lookup("ext-test-thing")
	require.True(t, ok)
	assert.Equal(t, "Thing", got.Name())
	assert.Contains(t, Builtins(), "ext-test-thing")

	_, ok = Lookup("ext-test-missing")
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicatesAndEmpty(t *testing.T) {
	e := Func(func() string { return "Dup" }, func() *ClassDescriptor { return &ClassDescriptor{} })
	Register("ext-test-dup", e)

	assert.Panics(t, func() { Register("ext-test-dup", e) })
	assert.Panics(t, func() { Register("", e) })
	assert.Panics(t, func() { Register("ext-test-nil", nil) })
}
