package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "Break underpayment down by payer, benchmark key, time, and CPT",
	RunE: func(cmd *cobra.Command, args []string) error {
		arts := artifacts()

		bd, err := pipeline.DriversFile(arts)
		if err != nil {
			return eris.Wrap(err, "drivers")
		}
		cpt, err := pipeline.CPTDriversFile(arts)
		if err != nil {
			return eris.Wrap(err, "cpt drivers")
		}
		summary, err := pipeline.UnderpaymentSummaryFile(arts)
		if err != nil {
			return eris.Wrap(err, "underpayment summary")
		}

		zap.L().Info("drivers done",
			zap.Int("payers", len(bd.ByPayer)),
			zap.Int("keys", len(bd.ByKey)),
			zap.Int("weeks", len(bd.ByTime)),
			zap.Int("cpt_buckets", len(cpt)),
			zap.Int("summary_rows", len(summary)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(driversCmd)
}
