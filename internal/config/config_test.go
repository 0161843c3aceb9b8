package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/uploads/*", cfg.Data.SourceGlob)
	assert.Equal(t, "data/outputs", cfg.Data.OutputsDir)
	assert.InDelta(t, 0.03, cfg.Perf.MaterialityPct, 0.001)
	assert.InDelta(t, 0.05, cfg.Perf.OverPct, 0.001)
	assert.InDelta(t, -0.05, cfg.Perf.UnderPct, 0.001)
	assert.Equal(t, "hgb", cfg.ML.Model)
	assert.InDelta(t, 10.0, cfg.ML.MaterialityPerVisit, 0.001)
	assert.Equal(t, 5, cfg.ML.TSSplits)
	assert.Equal(t, 25000, cfg.ML.RowCap)
	assert.InDelta(t, 0.06, cfg.ML.LearningRate, 0.001)
	assert.Equal(t, 400, cfg.ML.Iterations)
	assert.Equal(t, 0, cfg.ML.MaxDepth)
	assert.Equal(t, 30, cfg.Sample.Size)
	assert.Equal(t, int64(42), cfg.Sample.Seed)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
perf:
  materiality_pct: 0.05
ml:
  model: elasticnet
  ts_splits: 3
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.05, cfg.Perf.MaterialityPct, 0.001)
	assert.Equal(t, "elasticnet", cfg.ML.Model)
	assert.Equal(t, 3, cfg.ML.TSSplits)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep defaults.
	assert.InDelta(t, -0.05, cfg.Perf.UnderPct, 0.001)
	assert.Equal(t, 30, cfg.Sample.Size)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("REVPERF_ML_MATERIALITY_PER_VISIT", "25")
	t.Setenv("REVPERF_PERF_OVER_PCT", "0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 25.0, cfg.ML.MaterialityPerVisit, 0.001)
	assert.InDelta(t, 0.1, cfg.Perf.OverPct, 0.001)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level", Format: "json"}))
}
