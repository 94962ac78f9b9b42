package modules

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/module"
)

// webConfig is the part of an ASP.NET web.config the probe reads.
type webConfig struct {
	SystemWeb struct {
		Compilation *struct {
			Debug string `xml:"debug,attr"`
		} `xml:"compilation"`
		CustomErrors *struct {
			Mode string `xml:"mode,attr"`
		} `xml:"customErrors"`
	} `xml:"system.web"`
}

// WebConfigProbe inspects the application directory for settings that should not
// reach production.
type WebConfigProbe struct{}

// NewWebConfigProbe creates the module.
func NewWebConfigProbe() *WebConfigProbe {
	return &WebConfigProbe{}
}

func (m *WebConfigProbe) Describe() module.Metadata {
	return module.Metadata{
		Name:        "Web.config probe",
		Description: "Compilation debug mode, disabled custom errors and App_Offline.htm in the application directory.",
		Category:    CategoryFileSystem,
	}
}

func (m *WebConfigProbe) Run(ctx context.Context, inst *instance.Context) (any, error) {
	dir, err := inst.Directory()
	if err != nil {
		return nil, err
	}

	findings := module.Findings{}

	path, found, err := dir.Find("web.config")
	if err != nil {
		return nil, fmt.Errorf("reading application directory: %w", err)
	}
	if !found {
		findings = append(findings, module.Finding{
			Severity: module.SeverityWarning,
			Subject:  "web.config",
			Message:  "no web.config in " + dir.Root(),
		})
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var cfg webConfig
		if err := xml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if c := cfg.SystemWeb.Compilation; c != nil && strings.EqualFold(c.Debug, "true") {
			findings = append(findings, module.Finding{
				Severity: module.SeverityCritical,
				Subject:  "compilation debug",
				Message:  "ASP.NET compilation runs in debug mode",
			})
		}
		if ce := cfg.SystemWeb.CustomErrors; ce != nil && strings.EqualFold(ce.Mode, "Off") {
			findings = append(findings, module.Finding{
				Severity: module.SeverityWarning,
				Subject:  "customErrors",
				Message:  "detailed error pages are shown to every visitor",
			})
		}
	}

	offline, found, err := dir.Find("App_Offline.htm")
	if err != nil {
		return nil, err
	}
	if found {
		findings = append(findings, module.Finding{
			Severity: module.SeverityWarning,
			Subject:  "App_Offline.htm",
			Message:  "application is taken offline by " + offline,
		})
	}
	return findings, nil
}
