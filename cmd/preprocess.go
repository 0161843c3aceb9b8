package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var preprocessSource string

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Clean the raw export into the invoice benchmark index",
	RunE: func(cmd *cobra.Command, args []string) error {
		glob := cfg.Data.SourceGlob
		if preprocessSource != "" {
			glob = preprocessSource
		}

		res, err := pipeline.PreprocessFile(glob, artifacts())
		if err != nil {
			return eris.Wrap(err, "preprocess")
		}

		zap.L().Info("preprocess done",
			zap.Int("rows", len(res.Rows)),
			zap.Int("quarantined", len(res.Quarantined)),
		)
		return nil
	},
}

func init() {
	preprocessCmd.Flags().StringVar(&preprocessSource, "source", "", "glob for the raw export (overrides config)")
	rootCmd.AddCommand(preprocessCmd)
}
