package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-rcm/revperf/internal/model"
)

func shortfallAgg(week int, payer string, variance, expVsBench float64, visits int) model.AggRow {
	a := aggRow(week, payer, 0, 0, 0)
	a.RevenueVariance = variance
	a.ExpectedVsBenchmarkVariance = expVsBench
	a.VisitCount = visits
	return a
}

func TestBuildDrivers_NegativeOnly(t *testing.T) {
	agg := []model.AggRow{
		shortfallAgg(14, "BCBS", -500, -200, 10),
		// Overpaying week contributes nothing.
		shortfallAgg(15, "BCBS", 300, 100, 5),
	}

	out := BuildDrivers(agg, nil)
	require.Len(t, out.ByPayer, 1)

	p := out.ByPayer[0]
	assert.Equal(t, "BCBS", p.Payer)
	assert.InDelta(t, -500, p.VsExpectedDollar, 1e-9)
	assert.InDelta(t, -200, p.VsBenchmarkDollar, 1e-9)
	assert.InDelta(t, 300, p.IncrementalDollar, 1e-9)
	assert.Equal(t, 15, p.TotalVisitCount)
	assert.InDelta(t, 500, p.VsExpectedAbsDollar, 1e-9)
}

func TestBuildDrivers_PayerSortWorstFirst(t *testing.T) {
	agg := []model.AggRow{
		shortfallAgg(14, "AETNA", -100, -900, 1),
		shortfallAgg(14, "BCBS", -100, -200, 1),
	}

	out := BuildDrivers(agg, nil)
	require.Len(t, out.ByPayer, 2)
	// AETNA's incremental shortfall (-800) ranks before BCBS (-100).
	assert.Equal(t, "AETNA", out.ByPayer[0].Payer)
	assert.Equal(t, "BCBS", out.ByPayer[1].Payer)
}

func TestBuildDrivers_KeyBreakdownFromGranular(t *testing.T) {
	gran := []model.WeeklyRow{
		{
			Year: 2024, Week: 14, Payer: "BCBS",
			GroupEM: "Existing E/M Code", GroupEM2: "Level 3",
			BenchmarkKey:     "BCBS|Existing E/M Code|Level 3|['99213']",
			VisitCount:       4,
			PaymentAmount:    400,
			ExpectedPayment:  600,
			BenchmarkPayment: 700,
		},
	}

	out := BuildDrivers(nil, gran)
	require.Len(t, out.ByKey, 1)

	k := out.ByKey[0]
	assert.InDelta(t, -200, k.VsExpectedDollar, 1e-9)
	assert.InDelta(t, -100, k.VsBenchmarkDollar, 1e-9)
	assert.InDelta(t, 100, k.IncrementalDollar, 1e-9)
	assert.Equal(t, 4, k.TotalVisitCount)
}

func TestBuildDrivers_TimeBreakdownChronological(t *testing.T) {
	agg := []model.AggRow{
		shortfallAgg(15, "BCBS", -100, 0, 1),
		shortfallAgg(14, "BCBS", -300, 0, 1),
	}

	out := BuildDrivers(agg, nil)
	require.Len(t, out.ByTime, 2)
	assert.Equal(t, 14, out.ByTime[0].Week)
	assert.Equal(t, 15, out.ByTime[1].Week)
	assert.InDelta(t, -300, out.ByTime[0].VsExpectedDollar, 1e-9)
}

func TestBuildCPTDrivers(t *testing.T) {
	line := func(invoice, cpt string, payment, expected float64) model.EnhancedRow {
		return model.EnhancedRow{InvoiceRow: model.InvoiceRow{
			Year: 2024, Week: 14, Payer: "BCBS",
			GroupEM: "Existing E/M Code", GroupEM2: "Level 3",
			InvoiceNumber: invoice, CPTCode: cpt,
			PaymentAmount: payment, Expected85EM: expected,
		}}
	}
	rows := []model.EnhancedRow{
		line("INV-1", "99213", 70, 100),
		line("INV-2", "99213", 80, 100),
		line("INV-3", "99214", 150, 140),
	}

	out := BuildCPTDrivers(rows)
	require.Len(t, out, 2)

	// Worst dollar impact sorts first.
	worst := out[0]
	assert.Equal(t, "99213", worst.CPTCode)
	assert.Equal(t, 2, worst.TotalVisits)
	assert.InDelta(t, 75, worst.AvgActualRate, 1e-9)
	assert.InDelta(t, 100, worst.AvgExpectedRate85EM, 1e-9)
	assert.InDelta(t, -50, worst.TotalDollarImpact, 1e-9)
	assert.True(t, worst.Underpaid)

	assert.Equal(t, "99214", out[1].CPTCode)
	assert.False(t, out[1].Underpaid)
}

func TestBuildUnderpaymentSummary(t *testing.T) {
	a := aggRow(14, "BCBS", 800, 1000, 700)
	a.RevenueVariance = -200
	a.RevenueVariancePct = model.Percent(-0.2)
	// Against benchmark the same group overpays: only the 85EM side records.
	b := aggRow(14, "AETNA", 500, 400, 600)
	b.RevenueVariance = 100
	b.RevenueVariancePct = model.Percent(0.25)

	out := BuildUnderpaymentSummary([]model.AggRow{a, b})
	require.Len(t, out, 2)

	// Sorted by payer within the week.
	aetna, bcbs := out[0], out[1]
	require.Equal(t, "AETNA", aetna.Payer)
	require.Equal(t, "BCBS", bcbs.Payer)

	assert.InDelta(t, -200, bcbs.TotalUnderpayment85EM, 1e-9)
	assert.InDelta(t, -0.2, float64(bcbs.AvgUnderpaymentPct85EM), 1e-9)
	assert.Equal(t, 1, bcbs.Records85EM)
	assert.Zero(t, bcbs.TotalUnderpaymentBench)
	assert.Equal(t, 0, bcbs.RecordsBench)

	// AETNA underpays only against the benchmark (500 - 600).
	assert.Zero(t, aetna.TotalUnderpayment85EM)
	assert.InDelta(t, -100, aetna.TotalUnderpaymentBench, 1e-9)
	assert.Equal(t, 1, aetna.RecordsBench)
}
