package inspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveyegge/inspector/internal/data"
	"github.com/steveyegge/inspector/internal/instance"
)

// ErrCancelled marks modules that never started because the run was cancelled.
var ErrCancelled = errors.New("run cancelled before module started")

// ModuleExecutionError wraps whatever a module returned or panicked with.
type ModuleExecutionError struct {
	Module string
	Err    error

	// Panic and Stack are set when the module panicked.
	Panic any
	Stack []byte
}

func (e *ModuleExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("module %q panicked: %v", e.Module, e.Panic)
	}
	return fmt.Sprintf("module %q failed: %v", e.Module, e.Err)
}

func (e *ModuleExecutionError) Unwrap() error { return e.Err }

// Error kinds reported in result descriptors.
const (
	KindConfiguration     = "configuration"
	KindConnection        = "connection"
	KindQuery             = "query"
	KindScriptNotFound    = "script_not_found"
	KindTypeCoercion      = "type_coercion"
	KindVersionResolution = "version_resolution"
	KindPanic             = "panic"
	KindCancelled         = "cancelled"
	KindModule            = "module"
)

// Classify maps err to the kind recorded in reports. The most specific cause wins.
func Classify(err error) string {
	var (
		modErr      *ModuleExecutionError
		versionErr  *instance.VersionResolutionError
		configErr   *instance.ConfigurationError
		notFoundErr *data.ScriptNotFoundError
		coerceErr   *data.TypeCoercionError
		connErr     *data.ConnectionError
		queryErr    *data.QueryExecutionError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.As(err, &modErr) && modErr.Panic != nil:
		return KindPanic
	case errors.As(err, &versionErr):
		return KindVersionResolution
	case errors.As(err, &configErr):
		return KindConfiguration
	case errors.As(err, &notFoundErr):
		return KindScriptNotFound
	case errors.As(err, &coerceErr):
		return KindTypeCoercion
	case errors.As(err, &connErr):
		return KindConnection
	case errors.As(err, &queryErr):
		return KindQuery
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindModule
	}
}
