package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-rcm/revperf/internal/model"
)

func invoiceLine(invoice, key string, payment, expected float64) model.InvoiceRow {
	return model.InvoiceRow{
		Year: 2024, Week: 14, Payer: "BCBS",
		GroupEM: "Existing E/M Code", GroupEM2: "Level 3",
		InvoiceNumber: invoice,
		BenchmarkKey:  key,
		PaymentAmount: payment,
		Expected85EM:  expected,
	}
}

func TestEnhance_BenchmarkTwoLevelAverage(t *testing.T) {
	const key = "BCBS|Existing E/M Code|Level 3|['99213']"
	rows := []model.InvoiceRow{
		// INV-1 split over two lines: totals must sum before averaging.
		invoiceLine("INV-1", key, 100, 90),
		invoiceLine("INV-1", key, 20, 10),
		invoiceLine("INV-2", key, 140, 130),
		invoiceLine("INV-3", key, 160, 150),
	}

	out := Enhance(rows)
	require.Len(t, out, 4)

	// Invoice totals: 120, 140, 160; benchmark avg = 140.
	assert.InDelta(t, 120, out[0].InvoiceTotalPayment, 1e-9)
	assert.InDelta(t, 120, out[1].InvoiceTotalPayment, 1e-9)
	for _, e := range out {
		assert.InDelta(t, 140, e.BenchmarkAvgPayment, 1e-9)
	}
	assert.InDelta(t, -20, out[0].RevenueVarianceBenchDollar, 1e-9)
	assert.InDelta(t, 20, out[3].RevenueVarianceBenchDollar, 1e-9)
	assert.InDelta(t, -20.0/140.0, out[0].RevenueVarianceBenchPct, 1e-9)
}

func TestEnhance_Variance85AndZeroExpected(t *testing.T) {
	rows := []model.InvoiceRow{
		invoiceLine("INV-1", "k", 80, 100),
		invoiceLine("INV-2", "k", 50, 0),
	}

	out := Enhance(rows)
	assert.InDelta(t, -20, out[0].RevenueVariance85Dollar, 1e-9)
	assert.InDelta(t, -0.2, out[0].RevenueVariance85Pct, 1e-9)
	// Zero expectation yields zero percent, not infinity.
	assert.InDelta(t, 50, out[1].RevenueVariance85Dollar, 1e-9)
	assert.Zero(t, out[1].RevenueVariance85Pct)
}

func TestEnhance_OverUnderMutuallyExclusive(t *testing.T) {
	rows := []model.InvoiceRow{
		invoiceLine("INV-1", "k", 120, 100), // over by 20
		invoiceLine("INV-2", "k", 70, 100),  // under by 30
		invoiceLine("INV-3", "k", 100, 100), // exact
	}

	out := Enhance(rows)

	assert.InDelta(t, 20, out[0].OverpaymentDollar, 1e-9)
	assert.Zero(t, out[0].UnderpaymentDollar)
	assert.InDelta(t, 0.2, out[0].OverpaymentPct, 1e-9)

	assert.Zero(t, out[1].OverpaymentDollar)
	assert.InDelta(t, 30, out[1].UnderpaymentDollar, 1e-9)
	assert.InDelta(t, 0.3, out[1].UnderpaymentPct, 1e-9)

	assert.Zero(t, out[2].OverpaymentDollar)
	assert.Zero(t, out[2].UnderpaymentDollar)

	for _, e := range out {
		// Exactly one side of the split can be nonzero.
		assert.False(t, e.OverpaymentDollar > 0 && e.UnderpaymentDollar > 0)
	}
}

func TestEnhance_OpenInvoiceAnomaly(t *testing.T) {
	closed := invoiceLine("INV-1", "k", 100, 100)
	closed.OpenInvoiceCount = 0
	closed.ZeroBalanceCollRate = 0.70
	closed.CollectionRate = 0.85

	open := invoiceLine("INV-2", "k", 100, 100)
	open.OpenInvoiceCount = 2
	open.ZeroBalanceCollRate = 0.70
	open.CollectionRate = 0.85

	out := Enhance([]model.InvoiceRow{closed, open})
	assert.True(t, out[0].OpenInvoiceAnomaly)
	assert.False(t, out[1].OpenInvoiceAnomaly)
}

func TestEnhance_PositiveBalances(t *testing.T) {
	r := invoiceLine("INV-1", "k", 100, 100)
	r.SPChargeBilledBalance = -15
	r.InsuranceBilledBalance = 40

	out := Enhance([]model.InvoiceRow{r})
	assert.Zero(t, out[0].SPPositiveBalance)
	assert.InDelta(t, 40, out[0].InsurancePositiveBalance, 1e-9)
}
