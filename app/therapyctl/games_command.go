package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/yootherapy/internal/cache"
	"github.com/yoockh/yootherapy/internal/games"
	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/providers/llm"
	"github.com/yoockh/yootherapy/internal/utils"
)

// offlineHistory and offlineStats stand in for the stores so plugins build
// their session-less default trials.
type offlineHistory struct{}

func (offlineHistory) RecentOutcomes(context.Context, string, int) ([]models.Observation, error) {
	return nil, nil
}

func (offlineHistory) LastStarted(context.Context, string) (*models.Observation, error) {
	return nil, utils.ErrNotFound
}

func (offlineHistory) LatestOutcomeID(context.Context, string) (string, error) {
	return "", utils.ErrNotFound
}

type offlineStats struct{}

func (offlineStats) CompletedStats(context.Context, string) (int, int, error) { return 0, 0, nil }

func offlineRegistry(log *logrus.Logger) (*games.Registry, error) {
	reg := games.NewRegistry()
	err := games.RegisterDefaults(reg, games.Deps{
		History:      offlineHistory{},
		Stats:        offlineStats{},
		LLM:          llm.Unavailable{},
		PolicyWindow: 8,
		PolicyCache:  cache.NewMemoryCache(),
		Log:          log,
	})
	return reg, err
}

func newGamesCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List the registered games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := offlineRegistry(ctx.logger(cmd))
			if err != nil {
				return err
			}

			type gameRow struct {
				Code      string `json:"code"`
				Name      string `json:"name"`
				TrialType string `json:"trial_type"`
			}
			list := reg.List()
			out := make([]gameRow, 0, len(list))
			rows := make([][]string, 0, len(list))
			for _, p := range list {
				out = append(out, gameRow{Code: p.Code(), Name: p.Name(), TrialType: p.TrialType()})
				rows = append(rows, []string{p.Code(), p.Name(), p.TrialType()})
			}

			if !ctx.wantTable(cmd) {
				return writeJSON(cmd, out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Code", "Name", "Trial type"}, rows, nil))
			return nil
		},
	}
}

func newTrialCommand(ctx *cliContext) *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:   "trial <code>",
		Short: "Build a sample trial without session context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := offlineRegistry(ctx.logger(cmd))
			if err != nil {
				return err
			}
			plugin, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			if level <= 0 {
				if level, err = plugin.ComputeLevel(cmd.Context(), ""); err != nil {
					return err
				}
			}
			spec, err := plugin.BuildTrial(cmd.Context(), level, "")
			if err != nil {
				return err
			}

			if !ctx.wantTable(cmd) {
				return writeJSON(cmd, spec)
			}
			rows := [][]string{
				{"level", strconv.Itoa(spec.Level)},
				{"prompt", spec.Prompt},
				{"target", spec.Target},
				{"time_limit_ms", strconv.Itoa(spec.TimeLimitMS)},
			}
			if spec.Highlight != "" {
				rows = append(rows, []string{"highlight", spec.Highlight})
			}
			if spec.Hint != "" {
				rows = append(rows, []string{"hint", spec.Hint})
			}
			for _, o := range spec.Options {
				rows = append(rows, []string{"option " + o.ID, o.Label})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "Difficulty level (default: the plugin's starting level)")
	return cmd
}
