package modules

import (
	"context"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
	"github.com/steveyegge/inspector/internal/version"
)

// EventLogErrors groups logged errors by source and event code, most frequent first.
type EventLogErrors struct{}

// NewEventLogErrors creates the module.
func NewEventLogErrors() *EventLogErrors {
	return &EventLogErrors{}
}

func (m *EventLogErrors) Describe() module.Metadata {
	return module.Metadata{
		Name:          "Event log errors",
		Description:   "Errors in the event log grouped by source and event code.",
		Category:      CategoryHealth,
		Compatibility: []version.Range{version.Between("8.0", "9.0")},
	}
}

func (m *EventLogErrors) Run(ctx context.Context, inst *instance.Context) (any, error) {
	return scriptTable(ctx, inst, "Health/EventLogErrors")
}

// ScheduledTaskFailures lists enabled scheduled tasks whose last run reported a result.
type ScheduledTaskFailures struct{}

// NewScheduledTaskFailures creates the module.
func NewScheduledTaskFailures() *ScheduledTaskFailures {
	return &ScheduledTaskFailures{}
}

func (m *ScheduledTaskFailures) Describe() module.Metadata {
	return module.Metadata{
		Name:          "Failing scheduled tasks",
		Description:   "Enabled scheduled tasks whose last execution left an error message.",
		Category:      CategoryHealth,
		Compatibility: []version.Range{version.Between("8.0", "8.2")},
	}
}

func (m *ScheduledTaskFailures) Run(ctx context.Context, inst *instance.Context) (any, error) {
	return scriptTable(ctx, inst, "Health/ScheduledTaskFailures")
}
