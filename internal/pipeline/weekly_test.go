package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-rcm/revperf/internal/model"
)

func enhancedLine(year, week int, payer, invoice, key string, payment, expected float64) model.EnhancedRow {
	return model.EnhancedRow{InvoiceRow: model.InvoiceRow{
		Year: year, Week: week, Payer: payer,
		GroupEM: "Existing E/M Code", GroupEM2: "Level 3",
		InvoiceNumber: invoice, BenchmarkKey: key,
		PaymentAmount: payment, Expected85EM: expected,
	}}
}

func TestBuildWeekly_VisitCountIsDistinctInvoices(t *testing.T) {
	const key = "BCBS|Existing E/M Code|Level 3|['99213', '99214']"
	rows := []model.EnhancedRow{
		// One invoice fanned out over three CPT lines plus a second invoice.
		enhancedLine(2024, 14, "BCBS", "INV-1", key, 50, 40),
		enhancedLine(2024, 14, "BCBS", "INV-1", key, 30, 20),
		enhancedLine(2024, 14, "BCBS", "INV-1", key, 20, 10),
		enhancedLine(2024, 14, "BCBS", "INV-2", key, 90, 80),
	}

	weekly, agg := BuildWeekly(rows, 0.03)
	require.Len(t, weekly, 1)
	require.Len(t, agg, 1)

	assert.Equal(t, 2, weekly[0].VisitCount)
	assert.Equal(t, 4, weekly[0].GroupSize)
	assert.Equal(t, 2, agg[0].VisitCount)
	assert.Equal(t, 2, weekly[0].GroupInvoiceCount)
	assert.Equal(t, 2, weekly[0].CPTCount)
}

func TestBuildWeekly_DerivedMetrics(t *testing.T) {
	const key = "BCBS|Existing E/M Code|Level 3|['99213']"
	rows := []model.EnhancedRow{
		enhancedLine(2024, 14, "BCBS", "INV-1", key, 100, 90),
		enhancedLine(2024, 14, "BCBS", "INV-2", key, 140, 90),
		enhancedLine(2024, 15, "BCBS", "INV-3", key, 160, 90),
	}

	weekly, _ := BuildWeekly(rows, 0.03)
	require.Len(t, weekly, 2)

	w14 := weekly[0]
	require.Equal(t, 14, w14.Week)

	// Expected rate: mean of 85% E/M amounts across all rows of the key.
	assert.InDelta(t, 90, w14.ExpectedRate85EM, 1e-9)
	// Weekly rates 120 and 160 average to a 140 benchmark rate.
	assert.InDelta(t, 140, w14.BenchmarkRatePerVisit, 1e-9)
	// Mean weekly distinct invoices: (2 + 1) / 2.
	assert.InDelta(t, 1.5, w14.BenchmarkInvoiceCount, 1e-9)

	assert.InDelta(t, 180, w14.ExpectedPayment, 1e-9)
	assert.InDelta(t, 280, w14.BenchmarkPayment, 1e-9)
	assert.InDelta(t, 120, w14.ActualRatePerVisit, 1e-9)
	assert.InDelta(t, 60, w14.RevenueVariance, 1e-9)
	assert.InDelta(t, 60.0/180.0, float64(w14.RevenueVariancePct), 1e-9)
	assert.InDelta(t, 0.5, w14.VolumeGap, 1e-9)
	assert.InDelta(t, 30, w14.RateVariance, 1e-9)
}

func TestBuildWeekly_RevenueVariancePctNaNWhenNoExpectation(t *testing.T) {
	const key = "SELF PAY|Existing E/M Code|Level 3|['99213']"
	rows := []model.EnhancedRow{
		enhancedLine(2024, 14, "SELF PAY", "INV-1", key, 50, 0),
	}

	weekly, agg := BuildWeekly(rows, 0.03)
	require.Len(t, weekly, 1)
	assert.True(t, math.IsNaN(float64(weekly[0].RevenueVariancePct)))
	assert.True(t, math.IsNaN(float64(agg[0].RevenueVariancePct)))
}

func TestBuildWeekly_GroupDiagnosticsMaterialFlag(t *testing.T) {
	// Two keys in one group with rates 100 and 200 but lopsided volume:
	// weighted 100*9 + 200*1 = 1100, unweighted 150*10 = 1500.
	keyA := "BCBS|Existing E/M Code|Level 3|['99213']"
	keyB := "BCBS|Existing E/M Code|Level 3|['99215']"
	var rows []model.EnhancedRow
	for i := 0; i < 9; i++ {
		rows = append(rows, enhancedLine(2024, 14, "BCBS", "A"+string(rune('0'+i)), keyA, 100, 90))
	}
	rows = append(rows, enhancedLine(2024, 14, "BCBS", "B1", keyB, 200, 90))

	weekly, _ := BuildWeekly(rows, 0.03)
	require.Len(t, weekly, 2)

	d := weekly[0].GroupDiagnostics
	assert.InDelta(t, 1100, d.GroupBenchmarkWeighted, 1e-9)
	assert.InDelta(t, 1500, d.GroupBenchmarkUnweighted, 1e-9)
	assert.InDelta(t, -400, d.GroupBenchmarkDiffDollar, 1e-9)
	assert.InDelta(t, -400.0/1500.0, float64(d.GroupBenchmarkDiffPct), 1e-9)
	assert.True(t, d.GroupBenchmarkMaterial)
	assert.Equal(t, 10, d.GroupTotalVisits)
}

func TestBuildWeekly_AggRollup(t *testing.T) {
	keyA := "BCBS|Existing E/M Code|Level 3|['99213']"
	keyB := "BCBS|Existing E/M Code|Level 3|['99215']"
	keyC := "AETNA|Existing E/M Code|Level 2|['99213']"
	rows := []model.EnhancedRow{
		enhancedLine(2024, 14, "BCBS", "INV-1", keyA, 100, 90),
		enhancedLine(2024, 14, "BCBS", "INV-2", keyB, 200, 150),
		enhancedLine(2024, 14, "AETNA", "INV-3", keyC, 50, 40),
	}
	rows[2].GroupEM2 = "Level 2"

	weekly, agg := BuildWeekly(rows, 0.03)
	require.Len(t, weekly, 3)
	require.Len(t, agg, 2)

	// Sorted output: AETNA before BCBS.
	assert.Equal(t, "AETNA", agg[0].Payer)
	bcbs := agg[1]
	assert.Equal(t, 2, bcbs.VisitCount)
	assert.InDelta(t, 300, bcbs.PaymentAmount, 1e-9)
	assert.InDelta(t, 240, bcbs.ExpectedPayment, 1e-9)
	assert.InDelta(t, 60, bcbs.RevenueVariance, 1e-9)
	assert.InDelta(t, 150, bcbs.ActualRatePerVisit, 1e-9)
	// Benchmark rates equal payments here (one week, one visit per key).
	assert.InDelta(t, 300, bcbs.BenchmarkPayment, 1e-9)
	assert.InDelta(t, -60, bcbs.ExpectedVsBenchmarkVariance, 1e-9)
}
