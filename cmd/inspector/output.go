package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/inspector/internal/config"
	"github.com/steveyegge/inspector/internal/data"
	"github.com/steveyegge/inspector/internal/inspect"
	"github.com/steveyegge/inspector/internal/module"
	"github.com/steveyegge/inspector/internal/modules"
)

func render(w io.Writer, rep *inspect.Report, format string) error {
	switch strings.ToLower(format) {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		renderText(w, rep)
		return nil
	}
}

func renderText(w io.Writer, rep *inspect.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	target := rep.Target.URL
	if target == "" {
		target = rep.Target.Path
	}
	fmt.Fprintf(w, "\n%s\n", cyan("=== Inspection of "+target+" ==="))
	fmt.Fprintf(w, "Version %s, run %s\n\n", rep.Version, gray(rep.RunID.String()))

	for _, res := range rep.Results {
		switch res.State {
		case module.StateCompleted:
			fmt.Fprintf(w, "%s %s %s\n", green("✓"), res.Metadata.Name, gray(res.Duration.Round(time.Millisecond).String()))
			renderPayload(w, res.Payload)
		case module.StateSkipped:
			fmt.Fprintf(w, "%s %s %s\n", yellow("○"), res.Metadata.Name, gray("skipped"))
		default:
			fmt.Fprintf(w, "%s %s [%s]\n", red("✗"), res.Metadata.Name, res.Error.Kind)
			fmt.Fprintf(w, "    %s\n", res.Error.Message)
		}
	}

	if len(rep.Excluded) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("Not run for this version:"))
		for _, ex := range rep.Excluded {
			note := ""
			if ex.NearMiss {
				note = yellow(" (near miss)")
			}
			fmt.Fprintf(w, "  %s %s%s\n", ex.Metadata.Name, gray(compatibility(ex.Metadata)), note)
		}
	}

	failed := len(rep.Failed())
	summary := fmt.Sprintf("%d completed, %d failed, %d excluded, %d queries in %s",
		len(rep.Results)-failed, failed, len(rep.Excluded), rep.QueryCount,
		rep.Duration().Round(time.Millisecond))
	if failed > 0 {
		summary = red(summary)
	} else {
		summary = green(summary)
	}
	if rep.Cancelled {
		summary += yellow(" (cancelled)")
	}
	fmt.Fprintf(w, "\n%s\n", summary)
}

func renderPayload(w io.Writer, payload any) {
	switch p := payload.(type) {
	case nil:
	case *data.Table:
		renderTable(w, p)
	case data.DataSet:
		for _, t := range p {
			renderTable(w, t)
		}
	case module.Findings:
		if len(p) == 0 {
			fmt.Fprintln(w, "    no findings")
			return
		}
		for _, f := range p {
			fmt.Fprintf(w, "    %-8s %s: %s\n", severity(f.Severity), f.Subject, f.Message)
		}
	case *modules.Summary:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "    version\t%s\n", p.Version)
		fmt.Fprintf(tw, "    host\t%s\n", p.Host)
		fmt.Fprintf(tw, "    sites\t%d (%d running)\n", p.Sites, p.RunningSites)
		_ = tw.Flush()
	default:
		fmt.Fprintf(w, "    %v\n", p)
	}
}

var (
	tableBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tableIndent = lipgloss.NewStyle().MarginLeft(4)
)

func renderTable(w io.Writer, t *data.Table) {
	if t.Len() == 0 {
		fmt.Fprintln(w, "    no rows")
		return
	}
	rows := make([][]string, 0, t.Len())
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorder).
		Headers(t.Columns...).
		Rows(rows...)
	fmt.Fprintln(w, tableIndent.Render(tbl.String()))
}

func severity(s module.Severity) string {
	switch s {
	case module.SeverityCritical:
		return color.RedString(string(s))
	case module.SeverityWarning:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
