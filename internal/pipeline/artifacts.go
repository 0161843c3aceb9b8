// Package pipeline implements the revenue-cycle performance pipeline: a
// strictly sequential set of batch stages, each consuming the prior stage's
// output file and producing its own. No stage mutates another stage's
// output; the filesystem is the only channel between them.
package pipeline

import "path/filepath"

// Artifacts names every stage output under one directory. Each stage
// exclusively owns the files it writes.
type Artifacts struct {
	Dir string
}

func (a Artifacts) path(name string) string { return filepath.Join(a.Dir, name) }

func (a Artifacts) Cleaned() string          { return a.path("invoice_benchmark_index.csv") }
func (a Artifacts) ValidationReport() string { return a.path("validation_report.csv") }
func (a Artifacts) Enhanced() string         { return a.path("invoice_level_index_enhanced.csv") }
func (a Artifacts) WeeklyGranular() string   { return a.path("weekly_model_granular.csv") }
func (a Artifacts) WeeklyAgg() string        { return a.path("weekly_model_agg.csv") }
func (a Artifacts) DiagnosticsBase() string  { return a.path("weekly_model_diagnostics_base.csv") }
func (a Artifacts) MLDiagnostics() string    { return a.path("weekly_model_diagnostics_ml.csv") }
func (a Artifacts) MLMetrics() string        { return a.path("ml_model_performance.json") }
func (a Artifacts) PayerDrivers() string     { return a.path("underpayment_driver_payer.csv") }
func (a Artifacts) KeyDrivers() string       { return a.path("underpayment_driver_benchmark_key.csv") }
func (a Artifacts) TimeDrivers() string      { return a.path("underpayment_driver_time.csv") }
func (a Artifacts) CPTDrivers() string       { return a.path("cpt_rate_drivers_vs_85em.csv") }
func (a Artifacts) UnderpaymentSummary() string {
	return a.path("underpayment_summary.csv")
}
func (a Artifacts) Narrative() string { return a.path("Weekly_Performance_With_Diagnostics.xlsx") }
func (a Artifacts) SampleDetails() string {
	return a.path("benchmark_validation_sample_details.csv")
}
func (a Artifacts) SampleSummary() string {
	return a.path("benchmark_validation_sample_summary.csv")
}
func (a Artifacts) SampleMismatches() string {
	return a.path("benchmark_validation_sample_mismatches.csv")
}
