package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/mlrate"
	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var mlrateModel string

var mlrateCmd = &cobra.Command{
	Use:   "mlrate",
	Short: "Fit the payment-rate model and annotate the diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mlrateModel != "" {
			cfg.ML.Model = mlrateModel
		}

		opts := mlrate.Options{
			Kind:                pipeline.ModelKindFromConfig(cfg.ML.Model),
			Splits:              cfg.ML.TSSplits,
			RowCap:              cfg.ML.RowCap,
			LearningRate:        cfg.ML.LearningRate,
			Iterations:          cfg.ML.Iterations,
			MaxDepth:            cfg.ML.MaxDepth,
			MinLeaf:             cfg.ML.MinLeaf,
			Alpha:               cfg.ML.Alpha,
			L1Ratio:             cfg.ML.L1Ratio,
			MaterialityPerVisit: cfg.ML.MaterialityPerVisit,
		}

		rows, report, err := pipeline.MLFile(artifacts(), opts)
		if err != nil {
			return eris.Wrap(err, "mlrate")
		}

		fields := []zap.Field{zap.Int("rows", len(rows))}
		if report != nil {
			fields = append(fields,
				zap.String("model", string(report.Model)),
				zap.Float64("cv_mae_mean", report.CV.MAEMean),
			)
		}
		zap.L().Info("mlrate done", fields...)
		return nil
	},
}

func init() {
	mlrateCmd.Flags().StringVar(&mlrateModel, "model", "", "rate model: hgb, elasticnet, or off (overrides config)")
	rootCmd.AddCommand(mlrateCmd)
}
