package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	apirepository "ctchen222/tictactoe-history/internal/api/repository"
	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/internal/config"
	"ctchen222/tictactoe-history/internal/db"
	"ctchen222/tictactoe-history/internal/stats"
)

type statsOptions struct {
	userID int64
	verify bool
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	so := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a user's game summary",
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

			games := apirepository.NewGameRepository(sqlDB)
			summary, err := service.NewGameService(games, nil).Stats(cmd.Context(), so.userID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if !so.verify {
				return nil
			}

			raw, err := games.StatsRaw(cmd.Context(), so.userID)
			if err != nil {
				return err
			}
			if !sameSummary(raw, *summary) {
				return fmt.Errorf("summary mismatch: aggregate query gives %+v", raw)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "verified against the aggregate query")
			return nil
		},
	}

	fs := cmd.Flags()
	fs.Int64VarP(&so.userID, "user", "u", 0, "user id to summarize")
	fs.BoolVar(&so.verify, "verify", false, "cross-check the summary with a SQL aggregate")
	_ = cmd.MarkFlagRequired("user")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		if so.userID <= 0 {
			return errors.New("--user must be a positive id")
		}
		return nil
	}
	return cmd
}

func sameSummary(a, b stats.Summary) bool {
	return a.TotalGames == b.TotalGames &&
		a.XWins == b.XWins &&
		a.OWins == b.OWins &&
		a.Draws == b.Draws &&
		math.Abs(a.AverageMoves-b.AverageMoves) < 1e-9
}
