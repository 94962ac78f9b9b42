// Package module defines the contract every inspection check implements and the
// registry that gates checks by the version of the inspected instance.
package module

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/version"
)

// Module is a single read-only inspection check.
type Module interface {
	// Describe returns static metadata. It must not depend on any instance.
	Describe() Metadata

	// Run gathers data from inst and returns a payload. It must not modify the
	// instance and must not keep inst after returning.
	Run(ctx context.Context, inst *instance.Context) (any, error)
}

// DescribeError reports a module whose Describe panicked.
type DescribeError struct {
	Module string // dynamic type of the module
	Panic  any
	Stack  []byte
}

func (e *DescribeError) Error() string {
	return fmt.Sprintf("describing module %s: panic: %v", e.Module, e.Panic)
}

// Describe calls m.Describe and recovers a panic into a *DescribeError. The
// returned metadata then carries only the module's type as its name.
func Describe(m Module) (meta Metadata, err error) {
	defer func() {
		if p := recover(); p != nil {
			name := fmt.Sprintf("%T", m)
			meta = Metadata{Name: name}
			err = &DescribeError{Module: name, Panic: p, Stack: debug.Stack()}
		}
	}()
	return m.Describe(), nil
}

// Metadata describes a module. Nothing in it changes after registration.
type Metadata struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category" yaml:"category"`

	// Compatibility lists the version ranges the module supports. Empty means any.
	Compatibility []version.Range `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
}

// Supports reports whether the module may run against v.
func (m Metadata) Supports(v version.Version) bool {
	if len(m.Compatibility) == 0 {
		return true
	}
	for _, r := range m.Compatibility {
		if r.Includes(v) {
			return true
		}
	}
	return false
}

// NearMiss reports whether v is unsupported but shares major.minor with one of the
// declared bounds, which usually means a patch release nobody has vetted yet.
func (m Metadata) NearMiss(v version.Version) bool {
	if m.Supports(v) {
		return false
	}
	for _, r := range m.Compatibility {
		if r.Near(v) {
			return true
		}
	}
	return false
}

// State is a module's position in a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSkipped
}

// ErrorDescriptor is the serializable form of a module failure.
type ErrorDescriptor struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Result is the outcome of one module in a run. Exactly one of Payload and Err is
// meaningful: Err is set when the module failed or was skipped.
type Result struct {
	Metadata  Metadata         `json:"module" yaml:"module"`
	State     State            `json:"state" yaml:"state"`
	Payload   any              `json:"payload,omitempty" yaml:"payload,omitempty"`
	Err       error            `json:"-" yaml:"-"`
	Error     *ErrorDescriptor `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt time.Time        `json:"startedAt,omitzero" yaml:"startedAt,omitempty"`
	Duration  time.Duration    `json:"duration" yaml:"duration"`
}

// Failed reports whether the module produced an error.
func (r *Result) Failed() bool {
	return r.Err != nil
}
