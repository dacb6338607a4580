package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/enrollgate/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply run-history database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				files, err := db.MigrationFiles()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}

			conn, err := db.NewConnection(cmd.Context(), a.cfg.Database.Config)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.RunMigrations(conn.Pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List embedded migrations without connecting")
	return cmd
}
