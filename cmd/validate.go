package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var (
	validateSize int
	validateSeed int64
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Recompute a sample of invoices and compare against the artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.SampleOptions{Size: cfg.Sample.Size, Seed: cfg.Sample.Seed}
		if cmd.Flags().Changed("size") {
			opts.Size = validateSize
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = validateSeed
		}

		res, err := pipeline.ValidateSampleFile(cfg.Data.SourceGlob, artifacts(), opts)
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		zap.L().Info("validate done",
			zap.Int("checks", len(res.Details)),
			zap.Int("mismatches", len(res.Mismatches)),
		)
		if len(res.Mismatches) > 0 {
			return eris.Errorf("validate: %d checks failed", len(res.Mismatches))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateSize, "size", 30, "number of invoices to sample")
	validateCmd.Flags().Int64Var(&validateSeed, "seed", 42, "sampling seed")
	rootCmd.AddCommand(validateCmd)
}
