package data

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Coerce converts a scalar returned by the driver into T. NULL never converts.
// Supported targets are string, bool, int, int32, int64, float64, time.Time and
// time.Duration; any other T only accepts values that already have that type.
func Coerce[T any](v any) (T, error) {
	var zero T
	target := fmt.Sprintf("%T", zero)
	if v == nil {
		return zero, &TypeCoercionError{Value: v, Target: target, Err: fmt.Errorf("value is NULL")}
	}

	var (
		out any
		err error
	)
	switch any(zero).(type) {
	case string:
		out, err = cast.ToStringE(v)
	case bool:
		out, err = cast.ToBoolE(v)
	case int:
		out, err = cast.ToIntE(v)
	case int32:
		out, err = cast.ToInt32E(v)
	case int64:
		out, err = cast.ToInt64E(v)
	case float64:
		out, err = cast.ToFloat64E(v)
	case time.Time:
		out, err = cast.ToTimeE(v)
	case time.Duration:
		out, err = cast.ToDurationE(v)
	default:
		if t, ok := v.(T); ok {
			return t, nil
		}
		return zero, &TypeCoercionError{Value: v, Target: target}
	}
	if err != nil {
		return zero, &TypeCoercionError{Value: v, Target: target, Err: err}
	}
	return out.(T), nil
}

// ScalarAs runs query and coerces its single value into T.
func ScalarAs[T any](ctx context.Context, e Executor, query string, args ...any) (T, error) {
	v, err := e.Scalar(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Coerce[T](v)
}

// ScriptScalarAs runs the named script and coerces its single value into T.
func ScriptScalarAs[T any](ctx context.Context, e Executor, ref string, args ...any) (T, error) {
	v, err := e.ScriptScalar(ctx, ref, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Coerce[T](v)
}
