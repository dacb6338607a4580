// Command enrollgate runs enrollment-request batches through validation and
// the quality gate, and serves the run history.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/rpattn/enrollgate/internal/config"
	"github.com/rpattn/enrollgate/internal/logging"
	"github.com/rpattn/enrollgate/internal/pipeline"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitFatalInput = 2
	ExitGateFailed = 3
)

// exitError carries a specific exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, pipeline.ErrFatalInput) {
		return ExitFatalInput
	}
	return ExitError
}

// app holds state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "enrollgate",
		Short: "Enrollment request validation pipeline",
		Long: `enrollgate ingests batches of enrollment requests, validates every record
against the eligibility rules, applies the quality gate and writes an
auditable run directory.

Examples:
  enrollgate run --input requests.csv --run-label feb    # Process one batch
  enrollgate verify out/runs/<run_key>                  # Re-check a run's evidence
  enrollgate serve                                      # Start the run API
  enrollgate migrate                                    # Apply database migrations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./enrollgate.yaml or ./config/enrollgate.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Emit JSON logs")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}
	if err := logging.Initialize(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	a.cfg = cfg
	return nil
}

func main() {
	err := newRootCmd().Execute()
	logging.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
	}
	os.Exit(exitCode(err))
}
