package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Label weekly performance against expectation and benchmark",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := pipeline.DiagnosticsFile(artifacts(), cfg.Perf.OverPct, cfg.Perf.UnderPct)
		if err != nil {
			return eris.Wrap(err, "diagnostics")
		}
		zap.L().Info("diagnostics done", zap.Int("rows", len(rows)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
}
