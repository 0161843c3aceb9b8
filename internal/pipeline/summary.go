package pipeline

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

// BuildUnderpaymentSummary totals the negative revenue variances per group
// under both lenses. A group can be underpaid against one reference and not
// the other; the outer merge keeps both sides, zero-filled.
func BuildUnderpaymentSummary(agg []model.AggRow) []model.UnderpaymentSummaryRow {
	type acc struct {
		total85, pct85Sum float64
		n85               int

		totalBench, pctBenchSum float64
		nBench                  int
	}

	byGroup := make(map[model.GroupKey]*acc)
	get := func(k model.GroupKey) *acc {
		a := byGroup[k]
		if a == nil {
			a = &acc{}
			byGroup[k] = a
		}
		return a
	}

	for _, r := range agg {
		if r.RevenueVariance < 0 {
			a := get(r.Key())
			a.total85 += r.RevenueVariance
			if p := float64(r.RevenueVariancePct); !math.IsNaN(p) {
				a.pct85Sum += p
			}
			a.n85++
		}
		benchVariance := r.PaymentAmount - r.BenchmarkPayment
		if benchVariance < 0 {
			a := get(r.Key())
			a.totalBench += benchVariance
			if p := ratio(benchVariance, r.BenchmarkPayment); !math.IsNaN(p) {
				a.pctBenchSum += p
			}
			a.nBench++
		}
	}

	out := make([]model.UnderpaymentSummaryRow, 0, len(byGroup))
	for k, a := range byGroup {
		row := model.UnderpaymentSummaryRow{
			Year: k.Year, Week: k.Week,
			Payer: k.Payer, GroupEM: k.GroupEM, GroupEM2: k.GroupEM2,

			TotalUnderpayment85EM: a.total85,
			Records85EM:           a.n85,

			TotalUnderpaymentBench: a.totalBench,
			RecordsBench:           a.nBench,
		}
		if a.n85 > 0 {
			row.AvgUnderpaymentPct85EM = model.Percent(a.pct85Sum / float64(a.n85))
		}
		if a.nBench > 0 {
			row.AvgUnderpaymentPctBench = model.Percent(a.pctBenchSum / float64(a.nBench))
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if a.Payer != b.Payer {
			return a.Payer < b.Payer
		}
		if a.GroupEM != b.GroupEM {
			return a.GroupEM < b.GroupEM
		}
		return a.GroupEM2 < b.GroupEM2
	})
	return out
}

// UnderpaymentSummaryFile reads the aggregated weekly CSV and writes the
// underpayment summary.
func UnderpaymentSummaryFile(arts Artifacts) ([]model.UnderpaymentSummaryRow, error) {
	log := zap.L().With(zap.String("stage", "underpayment_summary"))

	agg, err := fileio.ReadCSV[model.AggRow](arts.WeeklyAgg())
	if err != nil {
		return nil, err
	}

	out := BuildUnderpaymentSummary(agg)
	if err := fileio.WriteCSV(arts.UnderpaymentSummary(), out); err != nil {
		return nil, err
	}

	log.Info("underpayment summary complete", zap.Int("rows", len(out)))
	return out, nil
}
