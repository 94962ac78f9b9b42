// Package modules is the built-in catalog of read-only inspection checks.
package modules

import (
	"context"
	"fmt"

	"github.com/steveyegge/inspector/internal/data"
	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
)

// Catalog categories.
const (
	CategoryGeneral       = "General"
	CategorySetup         = "Setup"
	CategoryConfiguration = "Configuration"
	CategoryHealth        = "Health"
	CategoryFileSystem    = "FileSystem"
)

// All returns a fresh instance of every built-in module.
func All() []module.Module {
	return []module.Module{
		NewInstanceSummary(),
		NewSitesOverview(),
		NewDebugSettings(),
		NewEventLogErrors(),
		NewScheduledTaskFailures(),
		NewWebConfigProbe(),
	}
}

// RegisterAll registers every built-in module with reg.
func RegisterAll(reg *module.Registry) error {
	for _, m := range All() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a registry holding the built-in catalog.
func DefaultRegistry() (*module.Registry, error) {
	reg := module.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		return nil, fmt.Errorf("registering built-in modules: %w", err)
	}
	return reg, nil
}

// scriptTable runs a named script and returns its first result set.
func scriptTable(ctx context.Context, inst *instance.Context, ref string) (*data.Table, error) {
	db, err := inst.DB()
	if err != nil {
		return nil, err
	}
	set, err := db.ScriptQuery(ctx, ref)
	if err != nil {
		return nil, err
	}
	table := set.First()
	if table == nil {
		return nil, fmt.Errorf("script %s produced no result set", ref)
	}
	return table, nil
}
