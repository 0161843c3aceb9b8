package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Add variance and benchmark columns to the cleaned invoice index",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := pipeline.EnhanceFile(artifacts())
		if err != nil {
			return eris.Wrap(err, "enhance")
		}
		zap.L().Info("enhance done", zap.Int("rows", len(rows)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enhanceCmd)
}
