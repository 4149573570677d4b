package main

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/yootherapy/internal/logger"
)

type cliContext struct {
	verbose bool
	jsonOut bool
}

func (c *cliContext) logger(cmd *cobra.Command) *logrus.Logger {
	if !c.verbose {
		return logger.Discard()
	}
	return logger.NewWithOutput(cmd.ErrOrStderr(), "debug")
}

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "therapyctl",
		Short:         "Offline tools for the therapy backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline stages to stderr")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOut, "json", false, "Print JSON even on a terminal")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newGamesCommand(ctx))
	rootCmd.AddCommand(newTrialCommand(ctx))

	return rootCmd
}
