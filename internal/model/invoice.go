package model

// Raw export headers the preprocessor renames. These are the verbatim
// column names produced by the practice-management report writer.
const (
	RawColYear    = "Year of Visit Service Date"
	RawColWeek    = "ISO Week of Visit Service Date"
	RawColPayer   = "Primary Financial Class"
	RawColGroupEM = "Chart E/M Code Grouping"
	RawColGroup2  = "Chart E/M Code Second Layer"
	RawColInvoice = "Charge Invoice Number"
)

// InvoiceRow is one cleaned billed line item, the preprocessor's output
// grain. An invoice spans one or more rows (one per CPT line); all rows of
// an invoice share one CPT_List_Str and hence one Benchmark_Key.
type InvoiceRow struct {
	Year          int    `csv:"Year"`
	Week          int    `csv:"Week"`
	Payer         string `csv:"Payer"`
	GroupEM       string `csv:"Group_EM"`
	GroupEM2      string `csv:"Group_EM2"`
	InvoiceNumber string `csv:"Invoice_Number"`
	CPTCode       string `csv:"Charge CPT Code"`

	ChargeAmount        float64 `csv:"Charge Amount"`
	PaymentAmount       float64 `csv:"Payment Amount*"`
	Expected85EM        float64 `csv:"Expected Amount (85% E/M)"`
	FeeScheduleExpected float64 `csv:"Fee Schedule Expected Amount"`

	ChargeBilledBalance    float64 `csv:"Charge Billed Balance"`
	SPChargeBilledBalance  float64 `csv:"SP Charge Billed Balance"`
	InsuranceBilledBalance float64 `csv:"Insurance Charge Billed Balance"`
	PaymentPerVisit        float64 `csv:"Payment per Visit"`
	NRVZeroBalance         float64 `csv:"NRV Zero Balance*"`
	ZeroBalanceCollRate    float64 `csv:"Zero Balance Collection Rate"`
	CollectionRate         float64 `csv:"Collection Rate*"`
	ZeroBalanceCollCharges float64 `csv:"Zero Balance - Collection * Charges"`
	RemainingChargesPct    float64 `csv:"% of Remaining Charges"`
	AvgChargeEMWeight      float64 `csv:"Avg. Charge E/M Weight"`
	LabsPerVisit           float64 `csv:"Lab per Visit"`
	ProcedurePerVisit      float64 `csv:"Procedure per Visit"`
	RadiologyCount         float64 `csv:"Radiology Count"`
	DenialPct              float64 `csv:"Denial %"`
	NRVGapDollar           float64 `csv:"NRV Gap ($)"`
	NRVGapPct              float64 `csv:"NRV Gap (%)"`
	NRVGapSumDollar        float64 `csv:"NRV Gap Sum ($)"`
	OpenInvoiceCount       float64 `csv:"Open Invoice Count"`

	CPTListStr   string `csv:"CPT_List_Str"`
	AbbrevKey    string `csv:"Abbreviate_Benchmark_Key"`
	BenchmarkKey string `csv:"Benchmark_Key"`
}

// EnhancedRow extends InvoiceRow with per-row variance metrics against the
// 85% E/M fee schedule and the historical benchmark.
//
// Invoice_Total_Payment and Benchmark_Avg_Payment are first-class columns
// here: the two-level aggregation (sum payments within an invoice, then mean
// across invoices sharing a Benchmark_Key) is the canonical semantics, not a
// merge-then-drop artifact.
type EnhancedRow struct {
	InvoiceRow

	RevenueVariance85Dollar float64 `csv:"Revenue_Variance_$_Against_85%E/M"`
	RevenueVariance85Pct    float64 `csv:"Revenue_Variance_%_Against_85%E/M"`

	InvoiceTotalPayment        float64 `csv:"Invoice_Total_Payment"`
	BenchmarkAvgPayment        float64 `csv:"Benchmark_Avg_Payment"`
	RevenueVarianceBenchDollar float64 `csv:"Revenue_Variance_$_Against_Benchmark"`
	RevenueVarianceBenchPct    float64 `csv:"Revenue_Variance_%_Against_Benchmark"`

	OverpaymentDollar  float64 `csv:"Overpayment ($)"`
	OverpaymentPct     float64 `csv:"Overpayment (%)"`
	UnderpaymentDollar float64 `csv:"Underpayment ($)"`
	UnderpaymentPct    float64 `csv:"Underpayment (%)"`

	OpenInvoiceAnomaly bool `csv:"Open_Invoice_Anomaly_Flag"`

	SPPositiveBalance        float64 `csv:"SP_Positive_Balance"`
	InsurancePositiveBalance float64 `csv:"Insurance_Positive_Balance"`
}
