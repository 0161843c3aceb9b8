package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Build the weekly granular and aggregated models",
	RunE: func(cmd *cobra.Command, args []string) error {
		gran, agg, err := pipeline.WeeklyFile(artifacts(), cfg.Perf.MaterialityPct)
		if err != nil {
			return eris.Wrap(err, "weekly")
		}
		zap.L().Info("weekly done",
			zap.Int("granular_rows", len(gran)),
			zap.Int("agg_rows", len(agg)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(weeklyCmd)
}
