package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var narrativeCmd = &cobra.Command{
	Use:   "narrative",
	Short: "Produce the weekly performance workbook with narratives",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := pipeline.ModelKindFromConfig(cfg.ML.Model)

		rows, err := pipeline.NarrativeFile(artifacts(), kind)
		if err != nil {
			return eris.Wrap(err, "narrative")
		}
		zap.L().Info("narrative done", zap.Int("rows", len(rows)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(narrativeCmd)
}
