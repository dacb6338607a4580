package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpattn/enrollgate/internal/httpapi"
	"github.com/rpattn/enrollgate/internal/logging"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP run API",
		Long: `Serve exposes POST /runs for uploads and GET /runs, /runs/{key} and
/runs/batch for the run history. History comes from Postgres when
database.enabled is set, otherwise from the run manifests on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, closeRepo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			runner, err := buildRunner(cfg, repo)
			if err != nil {
				return err
			}

			log := logging.ComponentLogger("httpapi")
			handler, err := httpapi.NewHandler(httpapi.Options{
				Runner:     runner,
				Repository: repo,
				OutDir:     cfg.Pipeline.OutDir,
				UploadDir:  cfg.Server.UploadDir,
				Logger:     log,
			})
			if err != nil {
				return err
			}

			routes := httpapi.Routes(handler, repo, cfg.Server.AllowedOrigins, log)
			return httpapi.Serve(ctx, cfg.Server.Addr, routes)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config: server.addr)")
	return cmd
}
