package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/config"
	"github.com/meridian-rcm/revperf/internal/mlrate"
	"github.com/meridian-rcm/revperf/internal/model"
	"github.com/meridian-rcm/revperf/internal/store"
)

// Pipeline runs the full stage sequence against one source export. The
// store is optional; without it the run simply is not recorded.
type Pipeline struct {
	cfg  *config.Config
	st   store.Store
	arts Artifacts
}

// New constructs a pipeline from configuration. st may be nil.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		st:   st,
		arts: Artifacts{Dir: cfg.Data.OutputsDir},
	}
}

// ModelKindFromConfig maps the configured model name to its kind tag.
// Unrecognized names disable the model rather than fail the run.
func ModelKindFromConfig(name string) model.ModelKind {
	switch name {
	case "hgb":
		return model.ModelHGB
	case "elasticnet":
		return model.ModelElasticNet
	default:
		return model.ModelNone
	}
}

func (p *Pipeline) mlOptions() mlrate.Options {
	ml := p.cfg.ML
	return mlrate.Options{
		Kind:                ModelKindFromConfig(ml.Model),
		Splits:              ml.TSSplits,
		RowCap:              ml.RowCap,
		LearningRate:        ml.LearningRate,
		Iterations:          ml.Iterations,
		MaxDepth:            ml.MaxDepth,
		MinLeaf:             ml.MinLeaf,
		Alpha:               ml.Alpha,
		L1Ratio:             ml.L1Ratio,
		MaterialityPerVisit: ml.MaterialityPerVisit,
	}
}

// stageResult is what each stage closure reports back for run bookkeeping.
type stageResult struct {
	rows      int
	artifacts []string
}

// Run executes every stage in order. Core stages abort the run on failure;
// the model and sample-validation stages degrade instead, so a sparse week
// of data still yields the deliverable workbook.
func (p *Pipeline) Run(ctx context.Context) (*model.Run, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	kind := ModelKindFromConfig(p.cfg.ML.Model)
	run := p.startRun(ctx, kind)

	err := p.runStages(ctx, run, &kind)
	if run != nil && p.st != nil {
		status := model.RunStatusComplete
		errMsg := ""
		if err != nil {
			status = model.RunStatusFailed
			errMsg = err.Error()
		}
		if ferr := p.st.FinishRun(ctx, run.ID, status, errMsg); ferr != nil {
			log.Warn("finish run record", zap.Error(ferr))
		}
		run.Status = status
		run.Error = errMsg
	}
	if err != nil {
		return run, err
	}

	log.Info("pipeline complete", zap.String("model", string(kind)))
	return run, nil
}

func (p *Pipeline) runStages(ctx context.Context, run *model.Run, kind *model.ModelKind) error {
	log := zap.L().With(zap.String("component", "pipeline"))

	if err := p.stage(ctx, run, "preprocess", func() (stageResult, error) {
		res, err := PreprocessFile(p.cfg.Data.SourceGlob, p.arts)
		if err != nil {
			return stageResult{}, err
		}
		return stageResult{rows: len(res.Rows), artifacts: []string{p.arts.Cleaned(), p.arts.ValidationReport()}}, nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, run, "enhance", func() (stageResult, error) {
		rows, err := EnhanceFile(p.arts)
		return stageResult{rows: len(rows), artifacts: []string{p.arts.Enhanced()}}, err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, run, "weekly", func() (stageResult, error) {
		gran, _, err := WeeklyFile(p.arts, p.cfg.Perf.MaterialityPct)
		return stageResult{rows: len(gran), artifacts: []string{p.arts.WeeklyGranular(), p.arts.WeeklyAgg()}}, err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, run, "diagnostics", func() (stageResult, error) {
		rows, err := DiagnosticsFile(p.arts, p.cfg.Perf.OverPct, p.cfg.Perf.UnderPct)
		return stageResult{rows: len(rows), artifacts: []string{p.arts.DiagnosticsBase()}}, err
	}); err != nil {
		return err
	}

	// The model degrades to a passthrough when it cannot fit, such as a
	// backlog too small for walk-forward validation.
	if err := p.stage(ctx, run, "ml_rate_diagnostics", func() (stageResult, error) {
		rows, _, err := MLFile(p.arts, p.mlOptions())
		return stageResult{rows: len(rows), artifacts: []string{p.arts.MLDiagnostics(), p.arts.MLMetrics()}}, err
	}); err != nil {
		log.Warn("model stage degraded to passthrough", zap.Error(err))
		*kind = model.ModelNone
		if err := p.stage(ctx, run, "ml_passthrough", func() (stageResult, error) {
			opts := p.mlOptions()
			opts.Kind = model.ModelNone
			rows, _, err := MLFile(p.arts, opts)
			return stageResult{rows: len(rows), artifacts: []string{p.arts.MLDiagnostics()}}, err
		}); err != nil {
			return err
		}
	}

	if err := p.stage(ctx, run, "underpayment_drivers", func() (stageResult, error) {
		bd, err := DriversFile(p.arts)
		if err != nil {
			return stageResult{}, err
		}
		return stageResult{
			rows:      len(bd.ByPayer) + len(bd.ByKey) + len(bd.ByTime),
			artifacts: []string{p.arts.PayerDrivers(), p.arts.KeyDrivers(), p.arts.TimeDrivers()},
		}, nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, run, "cpt_rate_drivers", func() (stageResult, error) {
		rows, err := CPTDriversFile(p.arts)
		return stageResult{rows: len(rows), artifacts: []string{p.arts.CPTDrivers()}}, err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, run, "underpayment_summary", func() (stageResult, error) {
		rows, err := UnderpaymentSummaryFile(p.arts)
		return stageResult{rows: len(rows), artifacts: []string{p.arts.UnderpaymentSummary()}}, err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, run, "narrative", func() (stageResult, error) {
		rows, err := NarrativeFile(p.arts, *kind)
		return stageResult{rows: len(rows), artifacts: []string{p.arts.Narrative()}}, err
	}); err != nil {
		return err
	}

	// Validation audits the artifacts; its failure is a finding, not a
	// reason to withhold them.
	if err := p.stage(ctx, run, "validate_sample", func() (stageResult, error) {
		res, err := ValidateSampleFile(p.cfg.Data.SourceGlob, p.arts, SampleOptions{
			Size: p.cfg.Sample.Size,
			Seed: p.cfg.Sample.Seed,
		})
		if err != nil {
			return stageResult{}, err
		}
		return stageResult{
			rows:      len(res.Details),
			artifacts: []string{p.arts.SampleDetails(), p.arts.SampleSummary(), p.arts.SampleMismatches()},
		}, nil
	}); err != nil {
		log.Warn("sample validation skipped", zap.Error(err))
	}

	return nil
}

func (p *Pipeline) startRun(ctx context.Context, kind model.ModelKind) *model.Run {
	if p.st == nil {
		return nil
	}
	run, err := p.st.CreateRun(ctx, p.cfg.Data.SourceGlob, kind)
	if err != nil {
		zap.L().Warn("create run record", zap.Error(err))
		return nil
	}
	return run
}

// stage runs one stage with run-registry bookkeeping around it.
func (p *Pipeline) stage(ctx context.Context, run *model.Run, name string, fn func() (stageResult, error)) error {
	log := zap.L().With(zap.String("stage", name))

	var rec *model.StageRecord
	if p.st != nil && run != nil {
		r, err := p.st.StartStage(ctx, run.ID, name)
		if err != nil {
			log.Warn("start stage record", zap.Error(err))
		} else {
			rec = r
		}
	}

	res, err := fn()

	if rec != nil {
		status := "complete"
		errMsg := ""
		if err != nil {
			status = "failed"
			errMsg = err.Error()
		}
		if ferr := p.st.FinishStage(ctx, rec.ID, status, res.rows, res.artifacts, errMsg); ferr != nil {
			log.Warn("finish stage record", zap.Error(ferr))
		}
	}

	if err != nil {
		return eris.Wrapf(err, "pipeline: stage %s", name)
	}
	return nil
}
