package model

// SampleCheckRow is one recompute comparison for a sampled invoice. Values
// are strings so the numeric checks and the key-identity check share one
// schema, the way the audit spreadsheet carries them.
type SampleCheckRow struct {
	BenchmarkKey   string  `csv:"Benchmark_Key"`
	InvoiceNumber  string  `csv:"Invoice_Number"`
	Check          string  `csv:"Check"`
	ProcessedValue string  `csv:"Processed_Value"`
	RecalcValue    string  `csv:"Recalc_Value"`
	Delta          float64 `csv:"Delta"`
	Match          bool    `csv:"Match"`
}

// SampleSummaryRow rolls the check rows up per check name.
type SampleSummaryRow struct {
	Check    string  `csv:"Check"`
	Total    int     `csv:"Total"`
	Pass     int     `csv:"Pass"`
	Fail     int     `csv:"Fail"`
	PassRate float64 `csv:"Pass_Rate"`
}
