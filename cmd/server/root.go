package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tictactoe",
		Short:         "Tic-tac-toe with accounts and recorded game history.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&opts.configPath, "config", "c", "config.yml", "path to the yaml config file (env overrides apply)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newStatsCmd(opts),
	)
	return cmd
}
