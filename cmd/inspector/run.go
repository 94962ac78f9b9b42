package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/inspector/internal/inspect"
	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/logging"
	"github.com/steveyegge/inspector/internal/modules"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run inspection modules against an instance",
		Long: `Resolve the instance version, run every compatible module and print a report.

Examples:
  # Everything compatible with the instance
  inspector run --url https://cms.example.com --path /srv/cms \
    --db-server sql01 --db-name Kentico --db-user inspector

  # Two modules, JSON report
  inspector run --module "Sites overview" --module "Debug settings" --format json

  # A local SQLite copy of the database
  inspector run --db-driver sqlite --db-name ./cms.db --url http://localhost

Exit status is 0 when every module completed, 1 when any failed and 2 when the
run could not start (bad configuration or unresolvable version). The database
password is read from INSPECTOR_INSTANCE_DATABASE_PASSWORD or the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runInspection(ctx, cmd, a)
		},
	}

	f := cmd.Flags()
	f.StringSlice("module", nil, "module to run (repeatable; default all compatible)")
	f.String("format", "text", "report format: text, json or yaml")
	f.Int("concurrency", 1, "modules run at once")
	f.String("url", "", "instance URL")
	f.String("path", "", "instance application directory")
	f.String("db-driver", "sqlserver", "database driver: sqlserver, postgres or sqlite")
	f.String("db-dsn", "", "database connection string (overrides the other --db flags)")
	f.String("db-server", "", "database server host[:port]")
	f.String("db-name", "", "database name, or file for sqlite")
	f.String("db-user", "", "database user")
	f.Float64("qps", 0, "maximum queries per second against the database (0 = unlimited)")
	f.Duration("timeout", 0, "per-query timeout (0 = driver default)")
	f.String("script-dir", "", "directory of SQL scripts overriding the built-in ones")
	return cmd
}

func runInspection(ctx context.Context, cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	log := logging.L("cli")

	inst, err := instance.New(cfg.InstanceConfig(), instance.WithDataOptions(cfg.DataOptions()))
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer func() {
		if err := inst.Close(); err != nil {
			log.Warn("closing database", logging.KeyError, err)
		}
	}()

	reg, err := modules.DefaultRegistry()
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	runner := inspect.NewRunner(
		inspect.WithConcurrency(cfg.Run.Concurrency),
		inspect.WithObserver(func(e inspect.Event) {
			if e.Module != "" {
				log.Debug("module transition", logging.KeyModule, e.Module, logging.KeyState, string(e.State))
			}
		}),
	)

	log.Info("inspecting instance", "config", cfg.String())
	rep, err := runner.Inspect(ctx, inst, reg, cfg.Run.Modules)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	if err := render(cmd.OutOrStdout(), rep, cfg.Run.Format); err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("rendering report: %w", err)}
	}
	if len(rep.Failed()) > 0 {
		return &exitError{code: exitFailed}
	}
	return nil
}
