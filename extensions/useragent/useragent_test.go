package useragent

import (
	"testing"

	"github.com/cryguy/jshandler/ext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 12_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.0 Mobile/15E148 Safari/604.1"

func TestUserAgent_Fields(t *testing.T) {
	desc := CreateObject()
	ua, err := desc.Constructor([]any{iphoneUA})
	require.NoError(t, err)

	get := func(m string) any {
		v, err := desc.Methods[m](ua, nil)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Mobile Safari", get("family"))
	assert.Equal(t, "12", get("major"))
	assert.Equal(t, "iOS", get("os"))
	assert.Equal(t, "iPhone", get("device"))
}

func TestUserAgent_ConstructorErrors(t *testing.T) {
	desc := CreateObject()
	_, err := desc.Constructor(nil)
	assert.Error(t, err)
	_, err = desc.Constructor([]any{1.0})
	assert.Error(t, err)
}

func TestUserAgent_Unknown(t *testing.T) {
	desc := CreateObject()
	ua, err := desc.Constructor([]any{"UA1"})
	require.NoError(t, err)
	v, err := desc.Methods["family"](ua, nil)
	require.NoError(t, err)
	assert.Equal(t, "Other", v)
}

func TestRegisteredAsBuiltin(t *testing.T) {
	e, ok := ext.Lookup("useragent")
	require.True(t, ok)
	assert.Equal(t, ClassName, e.Name())
	assert.ElementsMatch(t, []string{"device", "family", "major", "minor", "os"}, e.BuildDescriptor().MethodNames())
}
