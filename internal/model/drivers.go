package model

// Shortfall carries the negative-only underpayment decomposition shared by
// the driver breakdowns. Incremental shortfall is the portion of the gap
// attributable to under-benchmark performance beyond the 85% expectation.
type Shortfall struct {
	VsExpectedDollar     float64 `csv:"Shortfall_vs_Expected_$"`
	VsBenchmarkDollar    float64 `csv:"Shortfall_vs_Benchmark_$"`
	IncrementalDollar    float64 `csv:"Incremental_Shortfall_vs_Benchmark_$"`
	TotalVisitCount      int     `csv:"Total_Visit_Count"`
	VsExpectedAbsDollar  float64 `csv:"Shortfall_vs_Expected_Abs_$"`
	VsBenchmarkAbsDollar float64 `csv:"Shortfall_vs_Benchmark_Abs_$"`
	IncrementalAbsDollar float64 `csv:"Incremental_Shortfall_vs_Benchmark_Abs_$"`
}

// PayerShortfallRow is the underpayment-driver breakdown by payer.
type PayerShortfallRow struct {
	Payer string `csv:"Payer"`
	Shortfall
}

// KeyShortfallRow is the breakdown by benchmark key with E/M context.
type KeyShortfallRow struct {
	Payer        string `csv:"Payer"`
	GroupEM      string `csv:"Group_EM"`
	GroupEM2     string `csv:"Group_EM2"`
	BenchmarkKey string `csv:"Benchmark_Key"`
	Shortfall
}

// TimeShortfallRow is the breakdown by (Year, Week): when the gap opened.
type TimeShortfallRow struct {
	Year int `csv:"Year"`
	Week int `csv:"Week"`
	Shortfall
}

// CPTDriverRow summarizes payment-rate drivers per CPT code against the
// 85% E/M benchmark alone.
type CPTDriverRow struct {
	Year     int    `csv:"Year"`
	Week     int    `csv:"Week"`
	Payer    string `csv:"Payer"`
	GroupEM  string `csv:"Group_EM"`
	GroupEM2 string `csv:"Group_EM2"`
	CPTCode  string `csv:"Charge CPT Code"`

	TotalVisits         int     `csv:"Total_Visits"`
	AvgActualRate       float64 `csv:"Avg_Actual_Rate"`
	AvgExpectedRate85EM float64 `csv:"Avg_Expected_Rate_85EM"`
	TotalDollarImpact   float64 `csv:"Total_Dollar_Impact_vs_85EM"`
	Underpaid           bool    `csv:"Underpaid_Flag"`
}

// UnderpaymentSummaryRow totals negative variances by week, payer, and E/M
// group under both lenses.
type UnderpaymentSummaryRow struct {
	Year     int    `csv:"Year"`
	Week     int    `csv:"Week"`
	Payer    string `csv:"Payer"`
	GroupEM  string `csv:"Group_EM"`
	GroupEM2 string `csv:"Group_EM2"`

	TotalUnderpayment85EM  float64 `csv:"Total_Underpayment_85EM"`
	AvgUnderpaymentPct85EM Percent `csv:"Avg_Underpayment_Pct_85EM"`
	Records85EM            int     `csv:"Records_85EM"`

	TotalUnderpaymentBench  float64 `csv:"Total_Underpayment_Benchmark"`
	AvgUnderpaymentPctBench Percent `csv:"Avg_Underpayment_Pct_Benchmark"`
	RecordsBench            int     `csv:"Records_Benchmark"`
}
