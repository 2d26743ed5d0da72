// Package sqlite provides the Database extension class backed by an
// embedded SQLite database.
//
//	var db = new Components.classes.Database();          // in-memory
//	var db = new Components.classes.Database("app.db");  // file under Dir
//	db.exec("CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)");
//	db.exec("INSERT INTO t (name) VALUES (?)", "a");      // {changes, lastRowId}
//	db.query("SELECT * FROM t WHERE id = ?", 1);          // [{id: 1, name: "a"}]
//	db.close();
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cryguy/jshandler/ext"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// ClassName is the name scripts see under Components.classes.
const ClassName = "Database"

// Dir is where named database files are created. Overridden by
// JSHANDLER_SQLITE_DIR.
var Dir = "data/sqlite"

// Extension is registered as builtin:sqlite.
var Extension = ext.Func(GetName, CreateObject)

func init() { ext.Register("sqlite", Extension) }

func GetName() string { return ClassName }

func CreateObject() *ext.ClassDescriptor {
	return &ext.ClassDescriptor{
		Constructor: func(args []any) (any, error) {
			name := ""
			if len(args) > 0 {
				s, ok := args[0].(string)
				if !ok {
					return nil, errors.New("database name must be a string")
				}
				name = s
			}
			return Open(name)
		},
		Methods: map[string]ext.Method{
			"exec":  method((*Database).exec),
			"query": method((*Database).query),
			"close": func(self any, _ []any) (any, error) {
				return nil, self.(*Database).Close()
			},
		},
	}
}

func method(fn func(*Database, string, []any) (any, error)) ext.Method {
	return func(self any, args []any) (any, error) {
		if len(args) == 0 {
			return nil, errors.New("missing SQL statement")
		}
		stmt, ok := args[0].(string)
		if !ok {
			return nil, errors.New("SQL statement must be a string")
		}
		return fn(self.(*Database), stmt, args[1:])
	}
}

// Database is one open SQLite handle.
type Database struct {
	db *sql.DB
}

// Open opens name under Dir, or an in-memory database when name is empty.
func Open(name string) (*Database, error) {
	dsn := ":memory:"
	if name != "" {
		if err := validateName(name); err != nil {
			return nil, err
		}
		dir := Dir
		if env := os.Getenv("JSHANDLER_SQLITE_DIR"); env != "" {
			dir = env
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = filepath.Join(dir, name)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", name, err)
	}
	if name == "" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		_, _ = db.Exec("PRAGMA journal_mode=WAL")
	}
	return &Database{db: db}, nil
}

func validateName(name string) error {
	switch {
	case len(name) > 128:
		return errors.New("database name too long")
	case strings.Contains(name, ".."):
		return errors.New("database name contains path traversal")
	case strings.ContainsAny(name, "/\\"):
		return errors.New("database name contains path separator")
	case strings.ContainsRune(name, 0):
		return errors.New("database name contains null byte")
	}
	return nil
}

// Close is called when the script calls close() and again when the owning
// request or context ends.
func (d *Database) Close() error {
	return d.db.Close()
}

func checkStatement(stmt string) error {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	for _, blocked := range []string{"ATTACH", "DETACH"} {
		if strings.HasPrefix(upper, blocked) {
			return fmt.Errorf("%s statements are not allowed", blocked)
		}
	}
	return nil
}

// ExecResult is returned to scripts by exec().
type ExecResult struct {
	Changes   int64 `json:"changes"`
	LastRowID int64 `json:"lastRowId"`
}

func (d *Database) exec(stmt string, bindings []any) (any, error) {
	if err := checkStatement(stmt); err != nil {
		return nil, err
	}
	res, err := d.db.Exec(stmt, normalize(bindings)...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	changes, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return ExecResult{Changes: changes, LastRowID: lastID}, nil
}

func (d *Database) query(stmt string, bindings []any) (any, error) {
	if err := checkStatement(stmt); err != nil {
		return nil, err
	}
	rows, err := d.db.Query(stmt, normalize(bindings)...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[columns[i]] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// normalize turns whole JSON numbers back into integers so they bind as
// INTEGER.
func normalize(bindings []any) []any {
	out := make([]any, len(bindings))
	for i, b := range bindings {
		if f, ok := b.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[i] = int64(f)
			continue
		}
		out[i] = b
	}
	return out
}
