package modules

import (
	"context"

	"github.com/steveyegge/inspector/internal/data"
	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
)

// Summary is the payload of the instance summary module.
type Summary struct {
	Version      string `json:"version" yaml:"version"`
	Host         string `json:"host" yaml:"host"`
	Sites        int    `json:"sites" yaml:"sites"`
	RunningSites int    `json:"runningSites" yaml:"runningSites"`
}

// InstanceSummary reports the version, host and site counts of the instance.
type InstanceSummary struct{}

// NewInstanceSummary creates the module.
func NewInstanceSummary() *InstanceSummary {
	return &InstanceSummary{}
}

func (m *InstanceSummary) Describe() module.Metadata {
	return module.Metadata{
		Name:        "Instance summary",
		Description: "Version, host name and number of sites of the instance.",
		Category:    CategoryGeneral,
	}
}

func (m *InstanceSummary) Run(ctx context.Context, inst *instance.Context) (any, error) {
	v, err := inst.Version(ctx)
	if err != nil {
		return nil, err
	}
	u, err := inst.Address()
	if err != nil {
		return nil, err
	}
	db, err := inst.DB()
	if err != nil {
		return nil, err
	}

	sites, err := data.ScalarAs[int](ctx, db, "SELECT COUNT(*) FROM CMS_Site")
	if err != nil {
		return nil, err
	}
	running, err := data.ScalarAs[int](ctx, db, "SELECT COUNT(*) FROM CMS_Site WHERE SiteStatus = 'RUNNING'")
	if err != nil {
		return nil, err
	}

	return &Summary{
		Version:      v.String(),
		Host:         u.Hostname(),
		Sites:        sites,
		RunningSites: running,
	}, nil
}
