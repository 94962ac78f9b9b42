package instance

import (
	"errors"
	"fmt"
)

// ErrVersionNotSet means the instance database carries no version setting.
var ErrVersionNotSet = errors.New("version setting is missing or NULL")

// ConfigurationError reports a missing or malformed instance setting.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid instance configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// VersionResolutionError reports that the instance version could not be determined.
// Raw holds the stored value when one was read.
type VersionResolutionError struct {
	Raw string
	Err error
}

func (e *VersionResolutionError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("resolving instance version from %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("resolving instance version: %v", e.Err)
}

func (e *VersionResolutionError) Unwrap() error { return e.Err }
