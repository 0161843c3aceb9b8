package model

// NarrativeRow is the final deliverable grain: an ML-annotated diagnostics
// row with plain-language weekly narratives and flag columns for dashboard
// filtering. Column names keep the spreadsheet-facing labels reviewers know.
type NarrativeRow struct {
	MLRow

	MLDollarGapSum    float64 `csv:"ML_Dollar_Gap_Sum"`
	MLMaterialFlagSum int     `csv:"ML_Material_Flag_Sum"`
	MLRateGapMean     float64 `csv:"ML_Rate_Gap_Mean"`

	WhatWentWell   string `csv:"Revenue Cycle - What Went Well"`
	WhatCanImprove string `csv:"Revenue Cycle - What Can Be Improved"`

	OverPerformed85     int `csv:"Over Performed (85% E/M)"`
	UnderPerformed85    int `csv:"Under Performed (85% E/M)"`
	AveragePerform85    int `csv:"Average Performance (85% E/M)"`
	OverPerformedBench  int `csv:"Over Performed (Benchmark)"`
	UnderPerformedBench int `csv:"Under Performed (Benchmark)"`
	AveragePerformBench int `csv:"Average Performance (Benchmark)"`

	VolumeWithoutRevenueLift int `csv:"Volume Without Revenue Lift"`

	MLNarrativeSummary   string `csv:"ML_Narrative_Summary"`
	ZeroBalanceNarrative string `csv:"Zero-Balance Collection Narrative"`
}
