package main

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/rpattn/enrollgate/internal/audit"
	"github.com/rpattn/enrollgate/internal/manifest"
	"github.com/rpattn/enrollgate/internal/pipeline"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run_dir>",
		Short: "Re-hash a run's artifacts and re-walk its decision log chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]
			out := cmd.OutOrStdout()

			artifacts, err := manifest.Verify(runDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "artifacts:    %d checked, %d mismatched\n", artifacts.Checked, len(artifacts.Mismatches))
			for _, m := range artifacts.Mismatches {
				fmt.Fprintf(out, "  - %s\n", m)
			}

			chain, err := audit.VerifyFile(filepath.Join(runDir, pipeline.FileDecisionLog))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "decision_log: %d events, last hash %s\n", chain.Events, chain.LastHash)
			for _, e := range chain.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}

			if !artifacts.OK() || !chain.OK {
				return &exitError{code: ExitError, err: errors.Newf("run %s failed verification", runDir)}
			}
			fmt.Fprintln(out, "verified")
			return nil
		},
	}
}
