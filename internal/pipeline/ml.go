package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/mlrate"
	"github.com/meridian-rcm/revperf/internal/model"
)

// MLFile reads the diagnostics base, fits the configured rate model, and
// writes the ML-annotated diagnostics plus the model performance report.
// With Kind none the diagnostics pass through unmodeled so downstream
// stages always have an input at this grain.
func MLFile(arts Artifacts, opts mlrate.Options) ([]model.MLRow, *mlrate.Report, error) {
	log := zap.L().With(zap.String("stage", "ml_rate_diagnostics"))

	diag, err := fileio.ReadCSV[model.DiagRow](arts.DiagnosticsBase())
	if err != nil {
		return nil, nil, err
	}

	if opts.Kind == model.ModelNone || opts.Kind == "" {
		rows := passthroughML(diag)
		if err := fileio.WriteCSV(arts.MLDiagnostics(), rows); err != nil {
			return nil, nil, err
		}
		log.Info("model disabled, diagnostics passed through", zap.Int("rows", len(rows)))
		return rows, nil, nil
	}

	rows, report, err := mlrate.Run(diag, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := fileio.WriteCSV(arts.MLDiagnostics(), rows); err != nil {
		return nil, nil, err
	}
	if err := mlrate.WriteReport(arts.MLMetrics(), report); err != nil {
		return nil, nil, err
	}

	log.Info("rate model fitted",
		zap.String("model", string(report.Model)),
		zap.Int("rows_used", report.RowsUsed),
		zap.Float64("cv_mae_mean", report.CV.MAEMean),
		zap.Float64("train_r2", report.TrainFit.R2),
	)
	return rows, report, nil
}

func passthroughML(diag []model.DiagRow) []model.MLRow {
	rows := make([]model.MLRow, len(diag))
	for i, d := range diag {
		rows[i] = model.MLRow{
			DiagRow:                 d,
			HGBExpectedRatePerVisit: math.NaN(),
			HGBRateGap:              math.NaN(),
			HGBDollarGap:            math.NaN(),
		}
	}
	return rows
}
