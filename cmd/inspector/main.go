// Command inspector runs read-only checks against a CMS instance and reports what
// it finds.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/inspector/internal/config"
	"github.com/steveyegge/inspector/internal/logging"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // at least one module failed or was skipped
	exitFatal  = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app holds what the persistent pre-run resolved for the sub-commands.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "inspector",
		Short: "Inspect a CMS instance for configuration and health problems",
		Long: `Run read-only inspection modules against a CMS instance.

Modules query the instance database and application directory, and are gated by
the version recorded in the database. Nothing on the instance is modified.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			if err := logging.Init(cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr()); err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./inspector.yaml or $HOME/.inspector/inspector.yaml)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	root.AddCommand(newModulesCmd(), newRunCmd(a))
	return root
}

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs cmd and maps its error onto an exit code.
func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", exit.err)
		}
		return exit.code
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return exitFatal
}
