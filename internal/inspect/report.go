package inspect

import (
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
	"github.com/steveyegge/inspector/internal/version"
)

// Target identifies the inspected instance in a report.
type Target struct {
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Report is the ordered outcome of one run.
type Report struct {
	RunID       uuid.UUID          `json:"runId" yaml:"runId"`
	Target      Target             `json:"target" yaml:"target"`
	Version     version.Version    `json:"version" yaml:"version"`
	Facts       instance.Facts     `json:"facts" yaml:"facts"`
	StartedAt   time.Time          `json:"startedAt" yaml:"startedAt"`
	CompletedAt time.Time          `json:"completedAt" yaml:"completedAt"`
	Results     []*module.Result   `json:"results" yaml:"results"`
	Excluded    []module.Exclusion `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Cancelled   bool               `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	QueryCount  int64              `json:"queryCount" yaml:"queryCount"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Failed returns results carrying an error, skipped modules included.
func (r *Report) Failed() []*module.Result {
	var out []*module.Result
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the completed results.
func (r *Report) Succeeded() []*module.Result {
	var out []*module.Result
	for _, res := range r.Results {
		if !res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Result returns the result of the named module.
func (r *Report) Result(name string) (*module.Result, bool) {
	for _, res := range r.Results {
		if res.Metadata.Name == name {
			return res, true
		}
	}
	return nil, false
}
