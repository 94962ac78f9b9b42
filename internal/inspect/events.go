package inspect

import (
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/inspector/internal/module"
)

// RunState is the position of a whole run.
type RunState string

const (
	RunCreated          RunState = "created"
	RunContextResolving RunState = "context_resolving"
	RunModulesFiltered  RunState = "modules_filtered"
	RunExecuting        RunState = "executing"
	RunAggregated       RunState = "aggregated"
)

// Event is one state transition. Module is empty for run-level transitions.
type Event struct {
	RunID  uuid.UUID
	Time   time.Time
	Run    RunState
	Module string
	State  module.State
	Err    error
}

// Observer receives every transition of a run. Calls never overlap.
type Observer func(Event)
