package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctchen222/tictactoe-history/internal/config"
	"ctchen222/tictactoe-history/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the SQLite schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(opts.configPath)
			if err != nil {
				return err
			}
			sqlDB, err := db.OpenAndMigrate(cmd.Context(), cfg.SQLite.Path)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date in %s\n", cfg.SQLite.Path)
			return nil
		},
	}
}
