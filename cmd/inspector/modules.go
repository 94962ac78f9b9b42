package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/inspector/internal/module"
	"github.com/steveyegge/inspector/internal/modules"
	"github.com/steveyegge/inspector/internal/version"
)

func newModulesCmd() *cobra.Command {
	var (
		target string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the available inspection modules",
		Long: `List the built-in modules with their category and supported versions.

Examples:
  # Whole catalog
  inspector modules

  # Modules that would run against 8.1
  inspector modules --version 8.1

  # Include the ones 8.1 would exclude
  inspector modules --version 8.1 --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := modules.DefaultRegistry()
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}

			if target == "" {
				listModules(cmd.OutOrStdout(), reg.All(), nil)
				return nil
			}
			v, err := version.Parse(target)
			if err != nil {
				return &exitError{code: exitFatal, err: fmt.Errorf("--version: %w", err)}
			}
			compatible, excluded := reg.Partition(v)
			if !all {
				excluded = nil
			}
			listModules(cmd.OutOrStdout(), compatible, excluded)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "version", "", "only list modules compatible with this instance version")
	cmd.Flags().BoolVar(&all, "all", false, "with --version, also list excluded modules")
	return cmd
}

func listModules(w io.Writer, compatible []module.Module, excluded []module.Exclusion) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	category := ""
	for _, m := range compatible {
		meta := m.Describe()
		if meta.Category != category {
			category = meta.Category
			fmt.Fprintf(w, "%s\n", cyan(category))
		}
		fmt.Fprintf(w, "  %-26s %s\n", meta.Name, gray(compatibility(meta)))
		if meta.Description != "" {
			fmt.Fprintf(w, "  %-26s %s\n", "", meta.Description)
		}
	}

	if len(excluded) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", yellow("Excluded"))
	for _, ex := range excluded {
		note := ""
		if ex.NearMiss {
			note = " " + yellow("(near miss)")
		}
		fmt.Fprintf(w, "  %-26s %s%s\n", ex.Metadata.Name, gray(compatibility(ex.Metadata)), note)
	}
}

func compatibility(meta module.Metadata) string {
	if len(meta.Compatibility) == 0 {
		return "any version"
	}
	parts := make([]string, len(meta.Compatibility))
	for i, r := range meta.Compatibility {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
