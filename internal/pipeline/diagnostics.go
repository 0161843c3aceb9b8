package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

// ClassifyLabel bands an actual payment against an expectation. A missing or
// zero expectation can never classify, so it labels "No Data" rather than
// leaking an infinite percentage. Classification is a pure read: labeling a
// row changes none of its numbers.
func ClassifyLabel(actual, expected, overPct, underPct float64) string {
	if math.IsNaN(actual) || math.IsNaN(expected) || expected == 0 {
		return model.LabelNoData
	}
	diffPct := (actual - expected) / expected
	switch {
	case diffPct > overPct:
		return model.LabelOver
	case diffPct < underPct:
		return model.LabelUnder
	default:
		return model.LabelAverage
	}
}

// BuildDiagnostics classifies each aggregated row under the 85% E/M lens and
// the benchmark lens, then attaches historical baseline averages per
// (Payer, Group_EM, Group_EM2) for the narrative stage.
func BuildDiagnostics(agg []model.AggRow, overPct, underPct float64) []model.DiagRow {
	out := make([]model.DiagRow, 0, len(agg))
	for _, a := range agg {
		d := model.DiagRow{AggRow: a}

		d.RevenueVarianceVs85Dollar = a.PaymentAmount - a.ExpectedPayment
		d.RevenueVarianceVs85Pct = model.Percent(ratio(d.RevenueVarianceVs85Dollar, a.ExpectedPayment))
		d.PerformanceLabelVs85 = ClassifyLabel(a.PaymentAmount, a.ExpectedPayment, overPct, underPct)

		d.RevenueVarianceVsBenchDollar = a.PaymentAmount - a.BenchmarkPayment
		d.RevenueVarianceVsBenchPct = model.Percent(ratio(d.RevenueVarianceVsBenchDollar, a.BenchmarkPayment))
		d.PerformanceLabelVsBench = ClassifyLabel(a.PaymentAmount, a.BenchmarkPayment, overPct, underPct)

		out = append(out, d)
	}

	attachBaselines(out)
	return out
}

// baselineAcc accumulates the tracked metrics for one (Payer, Group_EM,
// Group_EM2) bucket.
type baselineAcc struct {
	n                                      float64
	cbb, zbcCharges, nrvZero, payment      float64
	zbcr, cr, denial                       float64
	nrvGapD, nrvGapP, remaining, nrvGapSum float64
}

func attachBaselines(rows []model.DiagRow) {
	byKey := make(map[model.BaselineKey]*baselineAcc)
	for _, d := range rows {
		k := d.Baseline()
		a := byKey[k]
		if a == nil {
			a = &baselineAcc{}
			byKey[k] = a
		}
		a.n++
		a.cbb += d.ChargeBilledBalance
		a.zbcCharges += d.ZeroBalanceCollCharges
		a.nrvZero += d.NRVZeroBalance
		a.payment += d.PaymentAmount
		a.zbcr += float64(d.ZeroBalanceCollRate)
		a.cr += float64(d.CollectionRate)
		a.denial += float64(d.DenialPct)
		a.nrvGapD += d.NRVGapDollar
		a.nrvGapP += float64(d.NRVGapPct)
		a.remaining += float64(d.RemainingChargesPct)
		a.nrvGapSum += d.NRVGapSumDollar
	}

	for i := range rows {
		a := byKey[rows[i].Baseline()]
		rows[i].ChargeBilledBalanceAvg = a.cbb / a.n
		rows[i].ZeroBalanceCollChargesAvg = a.zbcCharges / a.n
		rows[i].NRVZeroBalanceAvg = a.nrvZero / a.n
		rows[i].ZeroBalanceCollRateAvg = model.Percent(a.zbcr / a.n)
		rows[i].CollectionRateAvg = model.Percent(a.cr / a.n)
		rows[i].PaymentAmountAvg = a.payment / a.n
		rows[i].DenialPctAvg = model.Percent(a.denial / a.n)
		rows[i].NRVGapDollarAvg = a.nrvGapD / a.n
		rows[i].NRVGapPctAvg = model.Percent(a.nrvGapP / a.n)
		rows[i].RemainingChargesPctAvg = model.Percent(a.remaining / a.n)
		rows[i].NRVGapSumDollarAvg = a.nrvGapSum / a.n
	}
}

// DiagnosticsFile reads the aggregated weekly CSV and writes the diagnostics
// base file.
func DiagnosticsFile(arts Artifacts, overPct, underPct float64) ([]model.DiagRow, error) {
	log := zap.L().With(zap.String("stage", "diagnostics"))

	agg, err := fileio.ReadCSV[model.AggRow](arts.WeeklyAgg())
	if err != nil {
		return nil, err
	}

	out := BuildDiagnostics(agg, overPct, underPct)
	if err := fileio.WriteCSV(arts.DiagnosticsBase(), out); err != nil {
		return nil, err
	}

	log.Info("diagnostics complete", zap.Int("rows", len(out)))
	return out, nil
}
