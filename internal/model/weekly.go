package model

// WeeklyRow is one granular weekly aggregate: a (Year, Week, Payer,
// Group_EM, Group_EM2, Benchmark_Key) bucket. Immutable once written;
// consumed by every downstream stage.
type WeeklyRow struct {
	Year         int    `csv:"Year"`
	Week         int    `csv:"Week"`
	Payer        string `csv:"Payer"`
	GroupEM      string `csv:"Group_EM"`
	GroupEM2     string `csv:"Group_EM2"`
	BenchmarkKey string `csv:"Benchmark_Key"`

	VisitCount int `csv:"Visit_Count"` // distinct invoices, never row count
	GroupSize  int `csv:"Group_Size"`  // row count, for CPT-line fan-out visibility

	ChargeAmount           float64 `csv:"Charge_Amount"`
	PaymentAmount          float64 `csv:"Payment_Amount"`
	AvgChargeEMWeight      float64 `csv:"Avg_Charge_EM_Weight"`
	LabsPerVisit           float64 `csv:"Labs_per_Visit"`
	ProcedurePerVisit      float64 `csv:"Procedure_per_Visit"`
	RadiologyCount         float64 `csv:"Radiology_Count"`
	ZeroBalanceCollRate    Percent `csv:"Zero_Balance_Collection_Rate"`
	CollectionRate         Percent `csv:"Collection_Rate"`
	DenialPct              Percent `csv:"Denial_Percent"`
	ChargeBilledBalance    float64 `csv:"Charge_Billed_Balance"`
	ZeroBalanceCollCharges float64 `csv:"Zero_Balance_Collection_Star_Charges"`
	NRVZeroBalance         float64 `csv:"NRV_Zero_Balance"`
	NRVGapDollar           float64 `csv:"NRV_Gap_Dollar"`
	NRVGapPct              Percent `csv:"NRV_Gap_Percent"`
	RemainingChargesPct    Percent `csv:"Remaining_Charges_Percent"`
	NRVGapSumDollar        float64 `csv:"NRV_Gap_Sum_Dollar"`
	OpenInvoiceCount       float64 `csv:"Open_Invoice_Count"`

	// Per-key historical benchmarks merged onto each bucket.
	ExpectedRate85EM      float64 `csv:"Expected_Amount_85_EM_invoice_level"`
	BenchmarkInvoiceCount float64 `csv:"Benchmark_Invoice_Count"`
	BenchmarkRatePerVisit float64 `csv:"Benchmark_Payment_Rate_per_Visit"`
	CPTCount              int     `csv:"CPT_Count"`

	ExpectedPayment    float64 `csv:"Expected_Payment"`
	BenchmarkPayment   float64 `csv:"Benchmark_Payment"`
	ActualRatePerVisit float64 `csv:"Actual_Rate_per_Visit"`
	RevenueVariance    float64 `csv:"Revenue_Variance"`
	RevenueVariancePct Percent `csv:"Revenue_Variance_Pct"`
	VolumeGap          float64 `csv:"Volume_Gap"`
	RateVariance       float64 `csv:"Rate_Variance"`

	GroupDiagnostics
}

// Key returns the group identity of a granular row, ignoring Benchmark_Key.
func (w WeeklyRow) Key() GroupKey {
	return GroupKey{Year: w.Year, Week: w.Week, Payer: w.Payer, GroupEM: w.GroupEM, GroupEM2: w.GroupEM2}
}

// GroupDiagnostics reconciles the visit-weighted group benchmark payment
// against the unweighted per-key mean. Aggregating above Benchmark_Key grain
// silently distorts the benchmark when volume correlates with rate; the
// material flag surfaces that distortion.
type GroupDiagnostics struct {
	GroupBenchmarkWeighted   float64 `csv:"Group_Benchmark_Payment_Weighted"`
	GroupTotalVisits         int     `csv:"Group_Total_Visits"`
	GroupMeanRateUnweighted  float64 `csv:"Group_Mean_Rate_Unweighted"`
	GroupBenchmarkUnweighted float64 `csv:"Group_Benchmark_Payment_Unweighted"`
	GroupBenchmarkDiffDollar float64 `csv:"Group_Benchmark_Payment_Diff_$"`
	GroupBenchmarkDiffPct    Percent `csv:"Group_Benchmark_Payment_Diff_%"`
	GroupBenchmarkMaterial   bool    `csv:"Group_Benchmark_Payment_Material_Flag"`
	GroupInvoiceCount        int     `csv:"Group_Benchmark_Invoice_Count"`
}

// AggRow is the coarser weekly rollup at (Year, Week, Payer, Group_EM,
// Group_EM2) grain, built from the granular rows. Dollar fields are sums
// over keys, rate fields unweighted means over keys.
type AggRow struct {
	Year     int    `csv:"Year"`
	Week     int    `csv:"Week"`
	Payer    string `csv:"Payer"`
	GroupEM  string `csv:"Group_EM"`
	GroupEM2 string `csv:"Group_EM2"`

	VisitCount int `csv:"Visit_Count"`

	ChargeAmount           float64 `csv:"Charge_Amount"`
	PaymentAmount          float64 `csv:"Payment_Amount"`
	AvgChargeEMWeight      float64 `csv:"Avg_Charge_EM_Weight"`
	LabsPerVisit           float64 `csv:"Labs_per_Visit"`
	ProcedurePerVisit      float64 `csv:"Procedure_per_Visit"`
	RadiologyCount         float64 `csv:"Radiology_Count"`
	ZeroBalanceCollRate    Percent `csv:"Zero_Balance_Collection_Rate"`
	CollectionRate         Percent `csv:"Collection_Rate"`
	DenialPct              Percent `csv:"Denial_Percent"`
	ChargeBilledBalance    float64 `csv:"Charge_Billed_Balance"`
	ZeroBalanceCollCharges float64 `csv:"Zero_Balance_Collection_Star_Charges"`
	NRVZeroBalance         float64 `csv:"NRV_Zero_Balance"`
	NRVGapDollar           float64 `csv:"NRV_Gap_Dollar"`
	NRVGapPct              Percent `csv:"NRV_Gap_Percent"`
	RemainingChargesPct    Percent `csv:"Remaining_Charges_Percent"`
	NRVGapSumDollar        float64 `csv:"NRV_Gap_Sum_Dollar"`
	OpenInvoiceCount       float64 `csv:"Open_Invoice_Count"`

	ExpectedPayment    float64 `csv:"Expected_Payment"`
	BenchmarkPayment   float64 `csv:"Benchmark_Payment"`
	ActualRatePerVisit float64 `csv:"Actual_Rate_per_Visit"`

	RevenueVariance             float64 `csv:"Revenue_Variance"`
	RevenueVariancePct          Percent `csv:"Revenue_Variance_Pct"`
	ExpectedVsBenchmarkVariance float64 `csv:"Expected_vs_Benchmark_Payment_Variance_$"`

	GroupDiagnostics
}

// Key returns the bucket identity of an aggregated row.
func (a AggRow) Key() GroupKey {
	return GroupKey{Year: a.Year, Week: a.Week, Payer: a.Payer, GroupEM: a.GroupEM, GroupEM2: a.GroupEM2}
}

// BaselineKey is the historical-average grain shared by the diagnostics and
// narrative stages: payer and E/M classification, across all weeks.
type BaselineKey struct {
	Payer    string
	GroupEM  string
	GroupEM2 string
}

// Baseline returns the row's historical-average grouping.
func (a AggRow) Baseline() BaselineKey {
	return BaselineKey{Payer: a.Payer, GroupEM: a.GroupEM, GroupEM2: a.GroupEM2}
}
