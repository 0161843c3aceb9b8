package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/pipeline"
)

var (
	runSource string
	runModel  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline against the newest source export",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runSource != "" {
			cfg.Data.SourceGlob = runSource
		}
		if runModel != "" {
			cfg.ML.Model = runModel
		}

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p := pipeline.New(cfg, st)
		run, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if run == nil {
			zap.L().Info("run complete", zap.String("outputs", cfg.Data.OutputsDir))
			return nil
		}

		zap.L().Info("run complete",
			zap.String("run_id", run.ID),
			zap.String("model", string(run.Model)),
			zap.String("outputs", cfg.Data.OutputsDir),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "glob for the raw export (overrides config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "rate model: hgb, elasticnet, or off (overrides config)")
	rootCmd.AddCommand(runCmd)
}
