package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		input    string
		format   string
		outDir   string
		runLabel string
		workers  int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one batch of enrollment requests",
		Long: `Run ingests the input, validates every record and writes the run directory
<out>/runs/<run_key> with the normalized and rejected lanes, the quality
report, the decision log and the run manifest.

Exit codes: 0 completed, 2 unreadable input, 3 quality gate FAILED, 1 other errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if outDir != "" {
				cfg.Pipeline.OutDir = outDir
			}
			if workers > 0 {
				cfg.Pipeline.Workers = workers
			}

			repo, closeRepo, err := openRepository(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			runner, err := buildRunner(cfg, repo)
			if err != nil {
				return err
			}

			res, err := runner.Run(cmd.Context(), pipeline.Request{
				InputPath: input,
				Format:    format,
				OutDir:    cfg.Pipeline.OutDir,
				RunLabel:  runLabel,
				Command:   strings.Join(os.Args, " "),
			})
			if err != nil {
				if res.RunDir != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "decision log: %s\n", res.RunDir)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res.Summary); err != nil {
					return errors.Wrap(err, "encode summary")
				}
			} else {
				fmt.Fprintf(out, "run_id:   %s\n", res.Identity.RunID)
				fmt.Fprintf(out, "run_key:  %s\n", res.Identity.RunKey)
				fmt.Fprintf(out, "run_dir:  %s\n", res.RunDir)
				fmt.Fprintf(out, "status:   %s\n", res.Status)
				fmt.Fprintf(out, "records:  total=%d valid=%d invalid=%d rejection_rate=%.4f\n",
					res.Metrics.Total, res.Metrics.Valid, res.Metrics.Invalid, res.Metrics.RejectionRate)
			}

			if res.Status == domain.RunStatusFailed {
				return &exitError{
					code: ExitGateFailed,
					err:  errors.Newf("quality gate %s failed: %s", res.Gate.PolicyID, res.Gate.Rationale),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file")
	cmd.Flags().StringVarP(&format, "format", "f", "auto", "Input format: csv, json, txt, cobol, xlsx or auto")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default from config: pipeline.out_dir)")
	cmd.Flags().StringVarP(&runLabel, "run-label", "l", "", "Human label embedded in the run key (default: input file name)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel evaluation workers (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run summary as JSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
