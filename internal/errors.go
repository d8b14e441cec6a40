package internal

import (
	"fmt"
	"log/slog"
)

const maxStmtLen = 120

// NotFoundError reports an expected artifact that is absent: a missing
// workspace directory or a missing store file.
type NotFoundError struct {
	Path string
	Op   string // "open", "discover", "locate"
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Hint returns a troubleshooting hint for the error kind.
func (e *NotFoundError) Hint() string {
	return "check that Cursor has been run at least once in this workspace, or set CURSOR_JOURNAL_WORKSPACE_PATH to the storage directory"
}

// AccessError reports permission, lock, or corruption problems on a store
// that does exist.
type AccessError struct {
	Path string
	Op   string // "open", "read", "parse"
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

func (e *AccessError) Hint() string {
	if e.Op == "parse" {
		return "the store file exists but is not a valid SQLite database; it may be mid-write or truncated"
	}
	return "the store may be locked by a running Cursor instance or unreadable by this user"
}

// SchemaError reports a store that opened fine but is missing an expected
// table or column. It signals upstream format drift, not a query bug.
type SchemaError struct {
	Path    string
	Stmt    string
	Missing string // the table/column the driver reported as absent
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s missing %q (stmt %q): %v", e.Path, e.Missing, truncateStmt(e.Stmt), e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func (e *SchemaError) Hint() string {
	return "the on-disk layout is owned by Cursor and may have changed in a newer IDE release"
}

// QueryError reports a malformed statement or parameter-count mismatch.
// This is a logic bug in the caller, not an environment problem.
type QueryError struct {
	Path       string
	Stmt       string
	ParamCount int
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %s (stmt %q, %d params): %v", e.Path, truncateStmt(e.Stmt), e.ParamCount, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Hint() string {
	return "statement and placeholder count are fixed at compile time; this indicates a bug, please report it"
}

// ParseError reports a malformed JSON payload inside an otherwise valid
// store, or a malformed AI response.
type ParseError struct {
	Source string // "ItemTable", "cursorDiskKV", "ai"
	Key    string // storage key, or a short description for AI responses
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedPlatform is returned by the platform locator for an OS it
// has no storage-layout knowledge of. Fatal to discovery, not the process.
type ErrUnsupportedPlatform struct {
	GOOS string
}

func (e *ErrUnsupportedPlatform) Error() string {
	return fmt.Sprintf("platform not supported: %s", e.GOOS)
}

// hinted is implemented by error kinds that carry a troubleshooting hint.
type hinted interface {
	Hint() string
}

// ErrorAttrs converts an error into structured log attributes, including
// the hint when the error kind has one. Secret-looking values are redacted.
func ErrorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{slog.String("error", Redact(err.Error()))}
	if h, ok := err.(hinted); ok {
		attrs = append(attrs, slog.String("hint", h.Hint()))
	}
	return attrs
}

func truncateStmt(stmt string) string {
	if len(stmt) <= maxStmtLen {
		return stmt
	}
	return stmt[:maxStmtLen] + "..."
}
