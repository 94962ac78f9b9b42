package modules

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
)

// DebugSettings reports debug settings that are switched on.
type DebugSettings struct{}

// NewDebugSettings creates the module.
func NewDebugSettings() *DebugSettings {
	return &DebugSettings{}
}

func (m *DebugSettings) Describe() module.Metadata {
	return module.Metadata{
		Name:        "Debug settings",
		Description: "Debug settings enabled globally or per site.",
		Category:    CategoryConfiguration,
	}
}

func (m *DebugSettings) Run(ctx context.Context, inst *instance.Context) (any, error) {
	table, err := scriptTable(ctx, inst, "Configuration/DebugSettings")
	if err != nil {
		return nil, err
	}

	findings := module.Findings{}
	for _, rec := range table.Records() {
		key := cast.ToString(rec["KeyName"])
		subject := key
		if site := rec["SiteID"]; site != nil {
			subject = fmt.Sprintf("%s (site %s)", key, cast.ToString(site))
		}

		severity := module.SeverityWarning
		if key == "CMSDebugEverything" {
			severity = module.SeverityCritical
		}
		findings = append(findings, module.Finding{
			Severity: severity,
			Subject:  subject,
			Message:  "debug setting is enabled",
		})
	}
	return findings, nil
}
