package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rpattn/enrollgate/internal/manifest"
	"github.com/rpattn/enrollgate/internal/quality"
)

type versionInfo struct {
	Version        string `json:"version"`
	ManifestSchema string `json:"manifest_schema"`
	ReportSchema   string `json:"report_schema"`
	GoVersion      string `json:"go_version"`
	Platform       string `json:"platform"`
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and artifact schema information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:        manifest.PipelineVersion,
				ManifestSchema: manifest.Schema,
				ReportSchema:   quality.ReportSchema,
				GoVersion:      runtime.Version(),
				Platform:       runtime.GOOS + "/" + runtime.GOARCH,
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "%s %s\n", manifest.PipelineName, info.Version)
			fmt.Fprintf(out, "Manifest schema: %s\n", info.ManifestSchema)
			fmt.Fprintf(out, "Report schema: %s\n", info.ReportSchema)
			fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
			fmt.Fprintf(out, "Platform: %s\n", info.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output version info as JSON")
	return cmd
}
