package modules

import (
	"context"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
	"github.com/steveyegge/inspector/internal/version"
)

// SitesOverview lists the configured sites with their status and domain.
type SitesOverview struct{}

// NewSitesOverview creates the module.
func NewSitesOverview() *SitesOverview {
	return &SitesOverview{}
}

func (m *SitesOverview) Describe() module.Metadata {
	return module.Metadata{
		Name:        "Sites overview",
		Description: "Sites with their status and main domain.",
		Category:    CategorySetup,
		Compatibility: []version.Range{
			version.Exact("8.0"),
			version.Exact("8.1"),
			version.Exact("8.2"),
		},
	}
}

func (m *SitesOverview) Run(ctx context.Context, inst *instance.Context) (any, error) {
	return scriptTable(ctx, inst, "Setup/SitesOverview")
}
