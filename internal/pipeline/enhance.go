package pipeline

import (
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

// Enhance derives per-row variance metrics from the cleaned invoice rows.
//
// The benchmark comparison is two-level: payments are summed within an
// invoice inside its benchmark group, and the group benchmark is the mean of
// those invoice totals. Every row of an invoice carries the invoice total
// and the group benchmark so downstream stages never recompute them.
func Enhance(rows []model.InvoiceRow) []model.EnhancedRow {
	type invKey struct {
		bench   string
		invoice string
	}

	invoiceTotals := make(map[invKey]float64)
	for _, r := range rows {
		invoiceTotals[invKey{r.BenchmarkKey, r.InvoiceNumber}] += r.PaymentAmount
	}

	benchSum := make(map[string]float64)
	benchN := make(map[string]int)
	for k, total := range invoiceTotals {
		benchSum[k.bench] += total
		benchN[k.bench]++
	}

	out := make([]model.EnhancedRow, 0, len(rows))
	for _, r := range rows {
		e := model.EnhancedRow{InvoiceRow: r}

		e.RevenueVariance85Dollar = r.PaymentAmount - r.Expected85EM
		e.RevenueVariance85Pct = ratioOrZero(e.RevenueVariance85Dollar, r.Expected85EM)

		e.InvoiceTotalPayment = invoiceTotals[invKey{r.BenchmarkKey, r.InvoiceNumber}]
		e.BenchmarkAvgPayment = benchSum[r.BenchmarkKey] / float64(benchN[r.BenchmarkKey])
		e.RevenueVarianceBenchDollar = e.InvoiceTotalPayment - e.BenchmarkAvgPayment
		e.RevenueVarianceBenchPct = ratioOrZero(e.RevenueVarianceBenchDollar, e.BenchmarkAvgPayment)

		// Mutually exclusive split of the 85% E/M variance. Underpayment
		// is stored as a positive magnitude.
		e.OverpaymentDollar = posOnly(e.RevenueVariance85Dollar)
		e.OverpaymentPct = ratioOrZero(e.OverpaymentDollar, r.Expected85EM)
		e.UnderpaymentDollar = -negOnly(e.RevenueVariance85Dollar)
		e.UnderpaymentPct = ratioOrZero(e.UnderpaymentDollar, r.Expected85EM)

		// Closed invoice collecting below its own historical rate.
		e.OpenInvoiceAnomaly = r.OpenInvoiceCount == 0 && r.ZeroBalanceCollRate < r.CollectionRate

		e.SPPositiveBalance = posOnly(r.SPChargeBilledBalance)
		e.InsurancePositiveBalance = posOnly(r.InsuranceBilledBalance)

		out = append(out, e)
	}
	return out
}

// EnhanceFile reads the cleaned invoice CSV, derives the enhanced rows, and
// writes the enhanced invoice index.
func EnhanceFile(arts Artifacts) ([]model.EnhancedRow, error) {
	log := zap.L().With(zap.String("stage", "enhance"))

	rows, err := fileio.ReadCSV[model.InvoiceRow](arts.Cleaned())
	if err != nil {
		return nil, err
	}

	out := Enhance(rows)
	if err := fileio.WriteCSV(arts.Enhanced(), out); err != nil {
		return nil, err
	}

	log.Info("enhance complete", zap.Int("rows", len(out)))
	return out, nil
}
