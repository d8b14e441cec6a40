package internal

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// KeyValue is one row from a Cursor key-value table.
type KeyValue struct {
	Key   string
	Value string
}

// OpenStore opens a store file in read-only mode. The handle belongs
// exclusively to the caller and must be closed after use; it is never
// shared across goroutines.
func OpenStore(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Op: "open", Err: err}
		}
		return nil, &AccessError{Path: path, Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, &AccessError{Path: path, Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classifyOpenError(path, err)
	}
	// SQLite validates the file header lazily; force it now so corruption
	// surfaces at open time rather than mid-query.
	var schemaVersion int
	if err := db.QueryRow("PRAGMA schema_version").Scan(&schemaVersion); err != nil {
		db.Close()
		return nil, classifyOpenError(path, err)
	}
	return db, nil
}

// QueryStore opens the store at path, runs one parameterized query, and
// closes the handle again. Rows come back as key/value pairs; statements
// selecting a single column leave Value empty.
//
// The statement must be parameterized; values are never interpolated into
// the SQL text, so malformed input fails safely instead of corrupting the
// query.
func QueryStore(ctx context.Context, path, stmt string, args ...any) ([]KeyValue, error) {
	if n := strings.Count(stmt, "?"); n != len(args) {
		return nil, &QueryError{
			Path:       path,
			Stmt:       stmt,
			ParamCount: len(args),
			Err:        errors.New("placeholder count does not match argument count"),
		}
	}

	db, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classifyQueryError(path, stmt, len(args), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classifyQueryError(path, stmt, len(args), err)
	}

	var pairs []KeyValue
	for rows.Next() {
		var pair KeyValue
		switch len(cols) {
		case 1:
			var v sql.NullString
			if err := rows.Scan(&v); err != nil {
				return nil, classifyQueryError(path, stmt, len(args), err)
			}
			pair.Key = v.String
		case 2:
			var k, v sql.NullString
			if err := rows.Scan(&k, &v); err != nil {
				return nil, classifyQueryError(path, stmt, len(args), err)
			}
			pair.Key, pair.Value = k.String, v.String
		default:
			return nil, &QueryError{
				Path:       path,
				Stmt:       stmt,
				ParamCount: len(args),
				Err:        errors.New("statement must select one or two columns"),
			}
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(path, stmt, len(args), err)
	}
	return pairs, nil
}

// QueryValue returns the value stored under a single key in the given
// table, or "" when the key is absent.
func QueryValue(ctx context.Context, path, table, key string) (string, error) {
	pairs, err := QueryStore(ctx, path,
		"SELECT key, value FROM "+table+" WHERE key = ? AND value IS NOT NULL", key)
	if err != nil {
		return "", err
	}
	if len(pairs) == 0 {
		return "", nil
	}
	return pairs[0].Value, nil
}

// QueryPrefix returns every key/value pair in the table whose key starts
// with the given prefix.
func QueryPrefix(ctx context.Context, path, table, prefix string) ([]KeyValue, error) {
	return QueryStore(ctx, path,
		`SELECT key, value FROM `+table+` WHERE key LIKE ? ESCAPE '\' AND value IS NOT NULL`,
		likePrefix(prefix))
}

// likePrefix escapes LIKE metacharacters so a prefix match stays a prefix
// match even when the prefix itself contains % or _.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

// classifyOpenError maps a native ping failure to the taxonomy. A file
// that exists but cannot be parsed as SQLite is a corruption-flavored
// access error.
func classifyOpenError(path string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not a database"),
		strings.Contains(msg, "file is encrypted"),
		strings.Contains(msg, "malformed"):
		return &AccessError{Path: path, Op: "parse", Err: err}
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "unable to open"),
		strings.Contains(msg, "database is locked"):
		return &AccessError{Path: path, Op: "open", Err: err}
	default:
		return &AccessError{Path: path, Op: "open", Err: err}
	}
}

// classifyQueryError distinguishes schema drift (missing table/column,
// meaning Cursor changed its on-disk layout) from plain statement bugs.
func classifyQueryError(path, stmt string, paramCount int, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"):
		return &SchemaError{Path: path, Stmt: stmt, Missing: missingObject(msg), Err: err}
	default:
		return &QueryError{Path: path, Stmt: stmt, ParamCount: paramCount, Err: err}
	}
}

// missingObject pulls the table/column name out of a "no such table: X"
// style driver message. The driver appends a numeric error code like
// " (1)" to the name. Best effort; empty when the shape is unexpected.
func missingObject(msg string) string {
	for _, prefix := range []string{"no such table: ", "no such column: "} {
		i := strings.Index(msg, prefix)
		if i < 0 {
			continue
		}
		name := msg[i+len(prefix):]
		if j := strings.Index(name, " ("); j >= 0 {
			name = name[:j]
		}
		return strings.TrimSpace(name)
	}
	return ""
}
