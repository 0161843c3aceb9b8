package mlrate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/model"
)

// Options controls model selection and training. Zero values fall back to
// the documented defaults via Normalize.
type Options struct {
	Kind model.ModelKind

	Splits int
	RowCap int

	// Boosted-tree knobs.
	LearningRate float64
	Iterations   int
	MaxDepth     int // 0 means the default depth cap
	MinLeaf      int

	// Elastic-net knobs.
	Alpha   float64
	L1Ratio float64

	// Dollars per visit before a rate gap flags as material.
	MaterialityPerVisit float64
}

// Normalize fills unset knobs with defaults.
func (o Options) Normalize() Options {
	if o.Kind == "" {
		o.Kind = model.ModelHGB
	}
	if o.Splits == 0 {
		o.Splits = 5
	}
	if o.RowCap == 0 {
		o.RowCap = 25000
	}
	if o.LearningRate == 0 {
		o.LearningRate = 0.06
	}
	if o.Iterations == 0 {
		o.Iterations = 400
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultTreeDepth
	}
	if o.MinLeaf <= 0 {
		o.MinLeaf = 20
	}
	if o.Alpha == 0 {
		o.Alpha = 0.1
	}
	if o.L1Ratio == 0 {
		o.L1Ratio = 0.2
	}
	if o.MaterialityPerVisit == 0 {
		o.MaterialityPerVisit = 10
	}
	return o
}

// Report is the metrics sidecar persisted next to the annotated CSV. The
// model tag tells consumers which regressor produced the columns; nobody
// has to probe the CSV for column presence.
type Report struct {
	Model       model.ModelKind `json:"model"`
	RowsUsed    int             `json:"rows_used_for_model"`
	Params      ReportParams    `json:"params"`
	CV          CVMetrics       `json:"cross_validation"`
	TrainFit    FitMetrics      `json:"train_fit"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ReportParams echoes the effective training knobs into the sidecar.
type ReportParams struct {
	Splits              int     `json:"ts_splits"`
	RowCap              int     `json:"row_cap"`
	LearningRate        float64 `json:"learning_rate"`
	Iterations          int     `json:"iterations"`
	MaxDepth            int     `json:"max_depth"`
	MinLeaf             int     `json:"min_leaf"`
	Alpha               float64 `json:"alpha"`
	L1Ratio             float64 `json:"l1_ratio"`
	MaterialityPerVisit float64 `json:"materiality_per_visit"`
}

// Run trains the configured model on the diagnosable rows and annotates
// every input row. Rows without an actual rate (zero visits) keep NaN
// predictions and an unset flag. Input order is preserved.
func Run(diag []model.DiagRow, opts Options) ([]model.MLRow, *Report, error) {
	opts = opts.Normalize()
	log := zap.L().With(zap.String("stage", "mlrate"), zap.String("model", string(opts.Kind)))

	// Modeling frame: rows with a defined target, in time order, capped
	// to the latest window.
	sub := make([]model.DiagRow, 0, len(diag))
	for _, d := range diag {
		if !math.IsNaN(d.ActualRatePerVisit) {
			sub = append(sub, d)
		}
	}
	sort.SliceStable(sub, func(i, j int) bool {
		if sub[i].Year != sub[j].Year {
			return sub[i].Year < sub[j].Year
		}
		return sub[i].Week < sub[j].Week
	})
	if len(sub) > opts.RowCap {
		sub = sub[len(sub)-opts.RowCap:]
	}

	folds, err := timeSeriesFolds(len(sub), opts.Splits)
	if err != nil {
		return nil, nil, err
	}

	y := make([]float64, len(sub))
	for i, d := range sub {
		y[i] = d.ActualRatePerVisit
	}

	train := func(rows []model.DiagRow, target []float64) (*encoder, regressor, error) {
		enc := fitEncoder(rows)
		x := enc.encodeAll(rows)
		switch opts.Kind {
		case model.ModelHGB:
			return enc, trainBoosted(x, target, boostParams{
				iterations:   opts.Iterations,
				learningRate: opts.LearningRate,
				tree:         treeParams{maxDepth: opts.MaxDepth, minLeaf: opts.MinLeaf},
			}), nil
		case model.ModelElasticNet:
			return enc, trainElasticNet(x, target, elasticNetParams{
				alpha:   opts.Alpha,
				l1Ratio: opts.L1Ratio,
				maxIter: 2000,
				tol:     1e-6,
			}), nil
		default:
			return nil, nil, eris.Errorf("mlrate: unknown model kind %q", opts.Kind)
		}
	}

	perFold := make([]FitMetrics, 0, len(folds))
	for _, f := range folds {
		enc, reg, err := train(sub[:f.trainEnd], y[:f.trainEnd])
		if err != nil {
			return nil, nil, err
		}
		truth := y[f.testStart:f.testEnd]
		pred := make([]float64, len(truth))
		for i, d := range sub[f.testStart:f.testEnd] {
			pred[i] = reg.predict(enc.encode(d))
		}
		perFold = append(perFold, scoreFit(truth, pred))
	}

	enc, reg, err := train(sub, y)
	if err != nil {
		return nil, nil, err
	}
	predAll := make([]float64, len(sub))
	for i, d := range sub {
		predAll[i] = reg.predict(enc.encode(d))
	}

	byKey := make(map[model.GroupKey]float64, len(sub))
	for i, d := range sub {
		byKey[d.Key()] = predAll[i]
	}

	out := make([]model.MLRow, 0, len(diag))
	for _, d := range diag {
		m := model.MLRow{
			DiagRow:                 d,
			HGBExpectedRatePerVisit: math.NaN(),
			HGBRateGap:              math.NaN(),
			HGBDollarGap:            math.NaN(),
		}
		if expected, ok := byKey[d.Key()]; ok && !math.IsNaN(d.ActualRatePerVisit) {
			m.HGBExpectedRatePerVisit = expected
			m.HGBRateGap = d.ActualRatePerVisit - expected
			m.HGBDollarGap = m.HGBRateGap * float64(d.VisitCount)
			if math.Abs(m.HGBRateGap) >= opts.MaterialityPerVisit {
				m.HGBMaterialGapFlag = 1
			}
		}
		out = append(out, m)
	}

	report := &Report{
		Model:    opts.Kind,
		RowsUsed: len(sub),
		Params: ReportParams{
			Splits:              opts.Splits,
			RowCap:              opts.RowCap,
			LearningRate:        opts.LearningRate,
			Iterations:          opts.Iterations,
			MaxDepth:            opts.MaxDepth,
			MinLeaf:             opts.MinLeaf,
			Alpha:               opts.Alpha,
			L1Ratio:             opts.L1Ratio,
			MaterialityPerVisit: opts.MaterialityPerVisit,
		},
		CV:          summarizeCV(perFold),
		TrainFit:    scoreFit(y, predAll),
		GeneratedAt: time.Now().UTC(),
	}

	log.Info("model trained",
		zap.Int("rows_used", report.RowsUsed),
		zap.Float64("cv_mae_mean", report.CV.MAEMean),
		zap.Float64("cv_r2_mean", report.CV.R2Mean),
		zap.Float64("train_r2", report.TrainFit.R2),
	)
	return out, report, nil
}

// WriteReport persists the metrics sidecar twice: a rolling latest copy at
// path and a timestamped copy alongside it for history.
func WriteReport(path string, r *Report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return eris.Wrap(err, "mlrate: marshal report")
	}
	b = append(b, '\n')

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "mlrate: write %s", path)
	}

	ext := filepath.Ext(path)
	stamped := strings.TrimSuffix(path, ext) + fmt.Sprintf("_%d", time.Now().Unix()) + ext
	if err := os.WriteFile(stamped, b, 0o644); err != nil {
		return eris.Wrapf(err, "mlrate: write %s", stamped)
	}
	return nil
}
