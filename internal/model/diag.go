package model

// DiagRow is an aggregated row classified under both benchmark lenses and
// carrying historical baseline averages for the tracked operational metrics.
type DiagRow struct {
	AggRow

	RevenueVarianceVs85Dollar float64 `csv:"Revenue_Variance_vs_85EM_$"`
	RevenueVarianceVs85Pct    Percent `csv:"Revenue_Variance_vs_85EM_%"`
	PerformanceLabelVs85      string  `csv:"Performance_Label_vs_85EM"`

	RevenueVarianceVsBenchDollar float64 `csv:"Revenue_Variance_vs_Benchmark_$"`
	RevenueVarianceVsBenchPct    Percent `csv:"Revenue_Variance_vs_Benchmark_%"`
	PerformanceLabelVsBench      string  `csv:"Performance_Label_vs_Benchmark"`

	// Historical baseline averages per (Payer, Group_EM, Group_EM2),
	// repeated on every row for the narrative generator.
	ChargeBilledBalanceAvg    float64 `csv:"Charge_Billed_Balance_Avg"`
	ZeroBalanceCollChargesAvg float64 `csv:"Zero_Balance_Collection_Star_Charges_Avg"`
	NRVZeroBalanceAvg         float64 `csv:"NRV_Zero_Balance_Avg"`
	ZeroBalanceCollRateAvg    Percent `csv:"Zero_Balance_Collection_Rate_Avg"`
	CollectionRateAvg         Percent `csv:"Collection_Rate_Avg"`
	PaymentAmountAvg          float64 `csv:"Payment_Amount_Avg"`
	DenialPctAvg              Percent `csv:"Denial_Percent_Avg"`
	NRVGapDollarAvg           float64 `csv:"NRV_Gap_Dollar_Avg"`
	NRVGapPctAvg              Percent `csv:"NRV_Gap_Percent_Avg"`
	RemainingChargesPctAvg    Percent `csv:"Remaining_Charges_Percent_Avg"`
	NRVGapSumDollarAvg        float64 `csv:"NRV_Gap_Sum_Dollar_Avg"`
}

// MLRow is a diagnostics row extended with regression-model output. When no
// model ran the HGB_* fields are NaN and the flag is 0; consumers decide via
// the run's ModelKind tag, not by probing columns.
type MLRow struct {
	DiagRow

	HGBExpectedRatePerVisit float64 `csv:"HGB_Expected_Rate_per_Visit"`
	HGBRateGap              float64 `csv:"HGB_Rate_Gap"`
	HGBDollarGap            float64 `csv:"HGB_Dollar_Gap"`
	HGBMaterialGapFlag      int     `csv:"HGB_Material_Gap_Flag"`
}
