package data

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRows is returned by scalar queries that produce no row at all.
var ErrNoRows = errors.New("query returned no rows")

// ConnectionError reports that the instance database could not be reached.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s database: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryExecutionError wraps a driver error raised while executing a statement.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("executing query %q: %v", abbreviate(e.Query, 80), e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// ScriptNotFoundError reports a named script reference without script content.
type ScriptNotFoundError struct {
	Ref string
	Err error
}

func (e *ScriptNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script %q not found: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("script %q not found", e.Ref)
}

func (e *ScriptNotFoundError) Unwrap() error { return e.Err }

// TypeCoercionError reports a scalar that cannot be converted to the requested type.
type TypeCoercionError struct {
	Value  any
	Target string
	Err    error
}

func (e *TypeCoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %#v to %s: %v", e.Value, e.Target, e.Err)
	}
	return fmt.Sprintf("cannot convert %#v to %s", e.Value, e.Target)
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }

// abbreviate collapses whitespace and truncates s for error messages.
func abbreviate(s string, n int) string {
	out := []rune(strings.Join(strings.Fields(s), " "))
	if len(out) > n {
		return string(out[:n]) + "..."
	}
	return string(out)
}
