package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cryguy/jshandler/ext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, args ...any) (any, *ext.ClassDescriptor) {
	t.Helper()
	desc := CreateObject()
	db, err := desc.Constructor(args)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.(*Database).Close() })
	return db, desc
}

func call(t *testing.T, desc *ext.ClassDescriptor, self any, name string, args ...any) any {
	t.Helper()
	out, err := desc.Methods[name](self, args)
	require.NoError(t, err)
	return out
}

func TestDatabase_ExecAndQuery(t *testing.T) {
	db, desc := newDB(t)

	call(t, desc, db, "exec", "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	res := call(t, desc, db, "exec", "INSERT INTO t (name) VALUES (?)", "alpha")
	assert.Equal(t, ExecResult{Changes: 1, LastRowID: 1}, res)
	call(t, desc, db, "exec", "INSERT INTO t (name) VALUES (?)", "beta")

	rows := call(t, desc, db, "query", "SELECT id, name FROM t WHERE id = ?", float64(2))
	require.Len(t, rows, 1)
	row := rows.([]map[string]any)[0]
	assert.EqualValues(t, 2, row["id"])
	assert.Equal(t, "beta", row["name"])
}

func TestDatabase_QueryEmptyResultIsArray(t *testing.T) {
	db, desc := newDB(t)
	call(t, desc, db, "exec", "CREATE TABLE t (id INTEGER)")

	rows := call(t, desc, db, "query", "SELECT * FROM t")
	assert.Equal(t, []map[string]any{}, rows)
}

func TestDatabase_AttachBlocked(t *testing.T) {
	db, desc := newDB(t)
	_, err := desc.Methods["exec"](db, []any{"  attach database 'x.db' as x"})
	assert.ErrorContains(t, err, "ATTACH statements are not allowed")
}

func TestDatabase_ArgumentErrors(t *testing.T) {
	db, desc := newDB(t)
	_, err := desc.Methods["query"](db, nil)
	assert.EqualError(t, err, "missing SQL statement")
	_, err = desc.Methods["exec"](db, []any{42.0})
	assert.EqualError(t, err, "SQL statement must be a string")
	_, err = desc.Constructor([]any{1.0})
	assert.Error(t, err)
}

func TestDatabase_NamedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JSHANDLER_SQLITE_DIR", dir)
	db, desc := newDB(t, "app.db")
	call(t, desc, db, "exec", "CREATE TABLE t (id INTEGER)")

	_, err := os.Stat(filepath.Join(dir, "app.db"))
	assert.NoError(t, err)
}

func TestOpen_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"../x.db", "a/b.db", `a\b.db`} {
		_, err := Open(name)
		assert.Error(t, err, name)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []any{int64(3), 2.5, "x", nil}, normalize([]any{3.0, 2.5, "x", nil}))
}

func TestRegisteredAsBuiltin(t *testing.T) {
	e, ok := ext.Lookup("sqlite")
	require.True(t, ok)
	assert.Equal(t, ClassName, e.Name())
}
