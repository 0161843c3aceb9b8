package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-rcm/revperf/internal/config"
	"github.com/meridian-rcm/revperf/internal/model"
	"github.com/meridian-rcm/revperf/internal/store"
)

func writeSourceCSV(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(rawHeader))
	rows := [][]string{
		{"2024", "14", "BCBS", "Existing E/M Code", "Level 3", "INV-1", "99213", "100", "80", "90", "20", "80", "70", "0.8", "0.8", "5", "1.3"},
		{"", "", "", "", "", "", "85025", "25", "10", "20", "15", "80", "70", "0.8", "0.8", "5", "1.3"},
		{"2024", "14", "BCBS", "Existing E/M Code", "Level 3", "INV-2", "99213", "120", "95", "90", "25", "95", "70", "0.8", "0.8", "5", "1.3"},
		{"2024", "14", "AETNA", "Existing E/M Code", "Level 2", "INV-3", "99212", "90", "60", "70", "30", "60", "55", "0.7", "0.75", "8", "1.1"},
		{"2024", "15", "BCBS", "Existing E/M Code", "Level 3", "INV-4", "99213", "110", "85", "90", "25", "85", "70", "0.8", "0.8", "5", "1.3"},
		{"2024", "15", "AETNA", "Existing E/M Code", "Level 2", "INV-5", "99212", "95", "50", "70", "45", "50", "55", "0.7", "0.75", "8", "1.1"},
		{"Grand Total", "", "", "", "", "", "", "540", "380", "430", "", "", "", "", "", "", ""},
	}
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "export_week15.csv")
	writeSourceCSV(t, src)

	outputs := filepath.Join(dir, "outputs")
	require.NoError(t, os.MkdirAll(outputs, 0o755))

	return &config.Config{
		Data: config.DataConfig{
			SourceGlob: filepath.Join(dir, "export_*.csv"),
			OutputsDir: outputs,
		},
		Perf: config.PerfConfig{MaterialityPct: 0.03, OverPct: 0.05, UnderPct: -0.05},
		// Too few weeks for walk-forward validation; the model stays off.
		ML:     config.MLConfig{Model: "off"},
		Sample: config.SampleConfig{Size: 30, Seed: 42},
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	cfg := testConfig(t)

	p := New(cfg, nil)
	run, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run) // no store wired

	arts := Artifacts{Dir: cfg.Data.OutputsDir}
	for _, path := range []string{
		arts.Cleaned(), arts.ValidationReport(),
		arts.Enhanced(),
		arts.WeeklyGranular(), arts.WeeklyAgg(),
		arts.DiagnosticsBase(), arts.MLDiagnostics(),
		arts.PayerDrivers(), arts.KeyDrivers(), arts.TimeDrivers(),
		arts.CPTDrivers(), arts.UnderpaymentSummary(),
		arts.Narrative(),
		arts.SampleDetails(), arts.SampleSummary(), arts.SampleMismatches(),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestPipeline_RecordsRunAndStages(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")

	st, err := store.NewSQLite(cfg.Store.Path)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))

	p := New(cfg, st)
	run, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusComplete, run.Status)

	stages, err := st.ListStages(context.Background(), run.ID)
	require.NoError(t, err)

	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
		assert.Equal(t, "complete", s.Status, s.Name)
	}
	assert.Contains(t, names, "preprocess")
	assert.Contains(t, names, "enhance")
	assert.Contains(t, names, "weekly")
	assert.Contains(t, names, "diagnostics")
	assert.Contains(t, names, "ml_rate_diagnostics")
	assert.Contains(t, names, "narrative")
	assert.Contains(t, names, "validate_sample")
}

func TestPipeline_AbortsOnMissingSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.SourceGlob = filepath.Join(t.TempDir(), "nothing_*.csv")

	p := New(cfg, nil)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preprocess")
}

func TestModelKindFromConfig(t *testing.T) {
	assert.Equal(t, model.ModelHGB, ModelKindFromConfig("hgb"))
	assert.Equal(t, model.ModelElasticNet, ModelKindFromConfig("elasticnet"))
	assert.Equal(t, model.ModelNone, ModelKindFromConfig("off"))
	assert.Equal(t, model.ModelNone, ModelKindFromConfig(""))
}
