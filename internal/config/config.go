// Package config loads application configuration from environment variables
// and an optional config file, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// startup and passed by reference to every stage; stages never read the
// environment themselves.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Perf   PerfConfig   `yaml:"perf" mapstructure:"perf"`
	ML     MLConfig     `yaml:"ml" mapstructure:"ml"`
	Sample SampleConfig `yaml:"sample" mapstructure:"sample"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates input and output files.
type DataConfig struct {
	// SourceGlob selects the raw export; the most recently modified match wins.
	SourceGlob string `yaml:"source_glob" mapstructure:"source_glob"`
	OutputsDir string `yaml:"outputs_dir" mapstructure:"outputs_dir"`
}

// PerfConfig holds benchmark-comparison thresholds.
type PerfConfig struct {
	// MaterialityPct flags group-level weighted vs unweighted benchmark
	// divergence (fraction, default 0.03).
	MaterialityPct float64 `yaml:"materiality_pct" mapstructure:"materiality_pct"`
	// OverPct / UnderPct bound the performance bands (default ±0.05).
	OverPct  float64 `yaml:"over_pct" mapstructure:"over_pct"`
	UnderPct float64 `yaml:"under_pct" mapstructure:"under_pct"`
}

// MLConfig tunes the rate-diagnostics regression stage.
type MLConfig struct {
	Model               string  `yaml:"model" mapstructure:"model"` // "hgb", "elasticnet", or "off"
	MaterialityPerVisit float64 `yaml:"materiality_per_visit" mapstructure:"materiality_per_visit"`
	TSSplits            int     `yaml:"ts_splits" mapstructure:"ts_splits"`
	RowCap              int     `yaml:"row_cap" mapstructure:"row_cap"`
	LearningRate        float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	Iterations          int     `yaml:"iterations" mapstructure:"iterations"`
	MaxDepth            int     `yaml:"max_depth" mapstructure:"max_depth"` // 0 = unlimited
	MinLeaf             int     `yaml:"min_leaf" mapstructure:"min_leaf"`
	Alpha               float64 `yaml:"alpha" mapstructure:"alpha"`
	L1Ratio             float64 `yaml:"l1_ratio" mapstructure:"l1_ratio"`
}

// SampleConfig tunes the sample validator.
type SampleConfig struct {
	Size int   `yaml:"size" mapstructure:"size"`
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

// StoreConfig configures the run registry.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and REVPERF_*
// environment variables, applying defaults for everything else.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVPERF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.source_glob", "data/uploads/*")
	v.SetDefault("data.outputs_dir", "data/outputs")
	v.SetDefault("perf.materiality_pct", 0.03)
	v.SetDefault("perf.over_pct", 0.05)
	v.SetDefault("perf.under_pct", -0.05)
	v.SetDefault("ml.model", "hgb")
	v.SetDefault("ml.materiality_per_visit", 10.0)
	v.SetDefault("ml.ts_splits", 5)
	v.SetDefault("ml.row_cap", 25000)
	v.SetDefault("ml.learning_rate", 0.06)
	v.SetDefault("ml.iterations", 400)
	v.SetDefault("ml.max_depth", 0)
	v.SetDefault("ml.min_leaf", 20)
	v.SetDefault("ml.alpha", 0.1)
	v.SetDefault("ml.l1_ratio", 0.2)
	v.SetDefault("sample.size", 30)
	v.SetDefault("sample.seed", 42)
	v.SetDefault("store.path", "data/revperf.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds the global zap logger from LogConfig.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
