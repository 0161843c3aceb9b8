package pipeline

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

type granKey struct {
	group model.GroupKey
	bench string
}

type yearWeek struct {
	year, week int
}

// keyBenchmarks holds the per-Benchmark_Key historical references computed
// from the full enhanced dataset before any weekly bucketing.
type keyBenchmarks struct {
	expectedRate float64 // mean 85% E/M expected amount per row
	invoiceCount float64 // mean weekly distinct-invoice count
	payRate      float64 // mean of weekly payment-per-visit rates
}

// BuildWeekly rolls enhanced invoice rows up to the two weekly grains: the
// granular (group + Benchmark_Key) rows and the coarser group rows.
// Visit_Count is always distinct invoices; Group_Size is the CPT-line row
// count. materialityPct is the threshold for the weighted-vs-unweighted
// group benchmark reconciliation flag.
func BuildWeekly(rows []model.EnhancedRow, materialityPct float64) ([]model.WeeklyRow, []model.AggRow) {
	bench := buildKeyBenchmarks(rows)

	type granAcc struct {
		invoices map[string]struct{}
		n        int

		charge, payment                 float64
		emWeight, labs, proc, radiology float64
		zbcr, cr, denial                float64
		cbb, zbcCharges, nrvZero        float64
		nrvGapD, nrvGapP, remaining     float64
		nrvGapSum, openCount            float64
	}

	granular := make(map[granKey]*granAcc)
	for _, r := range rows {
		k := granKey{
			group: model.GroupKey{Year: r.Year, Week: r.Week, Payer: r.Payer, GroupEM: r.GroupEM, GroupEM2: r.GroupEM2},
			bench: r.BenchmarkKey,
		}
		acc := granular[k]
		if acc == nil {
			acc = &granAcc{invoices: make(map[string]struct{})}
			granular[k] = acc
		}
		acc.invoices[r.InvoiceNumber] = struct{}{}
		acc.n++
		acc.charge += r.ChargeAmount
		acc.payment += r.PaymentAmount
		acc.emWeight += r.AvgChargeEMWeight
		acc.labs += r.LabsPerVisit
		acc.proc += r.ProcedurePerVisit
		acc.radiology += r.RadiologyCount
		acc.zbcr += r.ZeroBalanceCollRate
		acc.cr += r.CollectionRate
		acc.denial += r.DenialPct
		acc.cbb += r.ChargeBilledBalance
		acc.zbcCharges += r.ZeroBalanceCollCharges
		acc.nrvZero += r.NRVZeroBalance
		acc.nrvGapD += r.NRVGapDollar
		acc.nrvGapP += r.NRVGapPct
		acc.remaining += r.RemainingChargesPct
		acc.nrvGapSum += r.NRVGapSumDollar
		acc.openCount += r.OpenInvoiceCount
	}

	weekly := make([]model.WeeklyRow, 0, len(granular))
	for k, acc := range granular {
		n := float64(acc.n)
		b := bench[k.bench]
		w := model.WeeklyRow{
			Year: k.group.Year, Week: k.group.Week,
			Payer: k.group.Payer, GroupEM: k.group.GroupEM, GroupEM2: k.group.GroupEM2,
			BenchmarkKey: k.bench,

			VisitCount: len(acc.invoices),
			GroupSize:  acc.n,

			ChargeAmount:           acc.charge,
			PaymentAmount:          acc.payment,
			AvgChargeEMWeight:      acc.emWeight / n,
			LabsPerVisit:           acc.labs / n,
			ProcedurePerVisit:      acc.proc / n,
			RadiologyCount:         acc.radiology / n,
			ZeroBalanceCollRate:    model.Percent(acc.zbcr / n),
			CollectionRate:         model.Percent(acc.cr / n),
			DenialPct:              model.Percent(acc.denial / n),
			ChargeBilledBalance:    acc.cbb,
			ZeroBalanceCollCharges: acc.zbcCharges,
			NRVZeroBalance:         acc.nrvZero,
			NRVGapDollar:           acc.nrvGapD,
			NRVGapPct:              model.Percent(acc.nrvGapP / n),
			RemainingChargesPct:    model.Percent(acc.remaining / n),
			NRVGapSumDollar:        acc.nrvGapSum,
			OpenInvoiceCount:       acc.openCount,

			ExpectedRate85EM:      b.expectedRate,
			BenchmarkInvoiceCount: b.invoiceCount,
			BenchmarkRatePerVisit: b.payRate,
			CPTCount:              model.CPTCountFromKey(k.bench),
		}

		visits := float64(w.VisitCount)
		w.ExpectedPayment = w.ExpectedRate85EM * visits
		w.BenchmarkPayment = w.BenchmarkRatePerVisit * visits
		w.ActualRatePerVisit = ratio(w.PaymentAmount, visits)
		w.RevenueVariance = w.PaymentAmount - w.ExpectedPayment
		w.RevenueVariancePct = model.Percent(ratio(w.RevenueVariance, w.ExpectedPayment))
		w.VolumeGap = visits - w.BenchmarkInvoiceCount
		w.RateVariance = w.ActualRatePerVisit - w.ExpectedRate85EM

		weekly = append(weekly, w)
	}
	sortWeekly(weekly)

	diags := buildGroupDiagnostics(weekly, rows, materialityPct)
	for i := range weekly {
		weekly[i].GroupDiagnostics = diags[weekly[i].Key()]
	}

	agg := buildAgg(weekly, diags)
	return weekly, agg
}

// buildKeyBenchmarks derives the historical per-key references: the mean
// expected 85% E/M amount, the mean weekly distinct-invoice count, and the
// mean of weekly payment rates per visit.
func buildKeyBenchmarks(rows []model.EnhancedRow) map[string]keyBenchmarks {
	type weekAcc struct {
		payment  float64
		invoices map[string]struct{}
	}

	expSum := make(map[string]float64)
	expN := make(map[string]int)
	weeksByKey := make(map[string]map[yearWeek]*weekAcc)

	for _, r := range rows {
		expSum[r.BenchmarkKey] += r.Expected85EM
		expN[r.BenchmarkKey]++

		weeks := weeksByKey[r.BenchmarkKey]
		if weeks == nil {
			weeks = make(map[yearWeek]*weekAcc)
			weeksByKey[r.BenchmarkKey] = weeks
		}
		yw := yearWeek{r.Year, r.Week}
		wa := weeks[yw]
		if wa == nil {
			wa = &weekAcc{invoices: make(map[string]struct{})}
			weeks[yw] = wa
		}
		wa.payment += r.PaymentAmount
		wa.invoices[r.InvoiceNumber] = struct{}{}
	}

	out := make(map[string]keyBenchmarks, len(expSum))
	for key, weeks := range weeksByKey {
		var visitCounts, rates []float64
		for _, wa := range weeks {
			visits := float64(len(wa.invoices))
			visitCounts = append(visitCounts, visits)
			rates = append(rates, ratio(wa.payment, visits))
		}
		out[key] = keyBenchmarks{
			expectedRate: expSum[key] / float64(expN[key]),
			invoiceCount: meanSkipNaN(visitCounts),
			payRate:      meanSkipNaN(rates),
		}
	}
	return out
}

// buildGroupDiagnostics reconciles each group's visit-weighted benchmark
// payment against the unweighted mean-rate version and attaches the group's
// true distinct-invoice count from the enhanced rows.
func buildGroupDiagnostics(weekly []model.WeeklyRow, rows []model.EnhancedRow, materialityPct float64) map[model.GroupKey]model.GroupDiagnostics {
	type acc struct {
		weighted float64
		visits   int
		rates    []float64
	}

	byGroup := make(map[model.GroupKey]*acc)
	for _, w := range weekly {
		k := w.Key()
		a := byGroup[k]
		if a == nil {
			a = &acc{}
			byGroup[k] = a
		}
		a.weighted += w.BenchmarkRatePerVisit * float64(w.VisitCount)
		a.visits += w.VisitCount
		a.rates = append(a.rates, w.BenchmarkRatePerVisit)
	}

	invoicesByGroup := make(map[model.GroupKey]map[string]struct{})
	for _, r := range rows {
		k := model.GroupKey{Year: r.Year, Week: r.Week, Payer: r.Payer, GroupEM: r.GroupEM, GroupEM2: r.GroupEM2}
		if invoicesByGroup[k] == nil {
			invoicesByGroup[k] = make(map[string]struct{})
		}
		invoicesByGroup[k][r.InvoiceNumber] = struct{}{}
	}

	out := make(map[model.GroupKey]model.GroupDiagnostics, len(byGroup))
	for k, a := range byGroup {
		meanRate := meanSkipNaN(a.rates)
		unweighted := meanRate * float64(a.visits)
		diff := a.weighted - unweighted
		diffPct := ratio(diff, unweighted)
		out[k] = model.GroupDiagnostics{
			GroupBenchmarkWeighted:   a.weighted,
			GroupTotalVisits:         a.visits,
			GroupMeanRateUnweighted:  meanRate,
			GroupBenchmarkUnweighted: unweighted,
			GroupBenchmarkDiffDollar: diff,
			GroupBenchmarkDiffPct:    model.Percent(diffPct),
			GroupBenchmarkMaterial:   !math.IsNaN(diffPct) && math.Abs(diffPct) >= materialityPct,
			GroupInvoiceCount:        len(invoicesByGroup[k]),
		}
	}
	return out
}

// buildAgg rolls granular rows up to group grain: dollars and visits sum,
// rates average unweighted across keys.
func buildAgg(weekly []model.WeeklyRow, diags map[model.GroupKey]model.GroupDiagnostics) []model.AggRow {
	type acc struct {
		visits int
		n      float64

		charge, payment                 float64
		emWeight, labs, proc, radiology float64
		zbcr, cr, denial                float64
		cbb, zbcCharges, nrvZero        float64
		nrvGapD, nrvGapP, remaining     float64
		nrvGapSum, openCount            float64
		expected, benchmark             float64
	}

	byGroup := make(map[model.GroupKey]*acc)
	for _, w := range weekly {
		k := w.Key()
		a := byGroup[k]
		if a == nil {
			a = &acc{}
			byGroup[k] = a
		}
		a.visits += w.VisitCount
		a.n++
		a.charge += w.ChargeAmount
		a.payment += w.PaymentAmount
		a.emWeight += w.AvgChargeEMWeight
		a.labs += w.LabsPerVisit
		a.proc += w.ProcedurePerVisit
		a.radiology += w.RadiologyCount
		a.zbcr += float64(w.ZeroBalanceCollRate)
		a.cr += float64(w.CollectionRate)
		a.denial += float64(w.DenialPct)
		a.cbb += w.ChargeBilledBalance
		a.zbcCharges += w.ZeroBalanceCollCharges
		a.nrvZero += w.NRVZeroBalance
		a.nrvGapD += w.NRVGapDollar
		a.nrvGapP += float64(w.NRVGapPct)
		a.remaining += float64(w.RemainingChargesPct)
		a.nrvGapSum += w.NRVGapSumDollar
		a.openCount += w.OpenInvoiceCount
		a.expected += w.ExpectedPayment
		a.benchmark += w.BenchmarkPayment
	}

	out := make([]model.AggRow, 0, len(byGroup))
	for k, a := range byGroup {
		row := model.AggRow{
			Year: k.Year, Week: k.Week,
			Payer: k.Payer, GroupEM: k.GroupEM, GroupEM2: k.GroupEM2,

			VisitCount: a.visits,

			ChargeAmount:           a.charge,
			PaymentAmount:          a.payment,
			AvgChargeEMWeight:      a.emWeight / a.n,
			LabsPerVisit:           a.labs / a.n,
			ProcedurePerVisit:      a.proc / a.n,
			RadiologyCount:         a.radiology / a.n,
			ZeroBalanceCollRate:    model.Percent(a.zbcr / a.n),
			CollectionRate:         model.Percent(a.cr / a.n),
			DenialPct:              model.Percent(a.denial / a.n),
			ChargeBilledBalance:    a.cbb,
			ZeroBalanceCollCharges: a.zbcCharges,
			NRVZeroBalance:         a.nrvZero,
			NRVGapDollar:           a.nrvGapD,
			NRVGapPct:              model.Percent(a.nrvGapP / a.n),
			RemainingChargesPct:    model.Percent(a.remaining / a.n),
			NRVGapSumDollar:        a.nrvGapSum,
			OpenInvoiceCount:       a.openCount,

			ExpectedPayment:  a.expected,
			BenchmarkPayment: a.benchmark,

			GroupDiagnostics: diags[k],
		}
		row.ActualRatePerVisit = ratio(row.PaymentAmount, float64(row.VisitCount))
		row.RevenueVariance = row.PaymentAmount - row.ExpectedPayment
		row.RevenueVariancePct = model.Percent(ratio(row.RevenueVariance, row.ExpectedPayment))
		row.ExpectedVsBenchmarkVariance = row.ExpectedPayment - row.BenchmarkPayment
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

func sortWeekly(rows []model.WeeklyRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
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
		if a.GroupEM2 != b.GroupEM2 {
			return a.GroupEM2 < b.GroupEM2
		}
		return a.BenchmarkKey < b.BenchmarkKey
	})
}

// WeeklyFile reads the enhanced invoice CSV and writes the granular and
// aggregated weekly models.
func WeeklyFile(arts Artifacts, materialityPct float64) ([]model.WeeklyRow, []model.AggRow, error) {
	log := zap.L().With(zap.String("stage", "weekly"))

	rows, err := fileio.ReadCSV[model.EnhancedRow](arts.Enhanced())
	if err != nil {
		return nil, nil, err
	}

	weekly, agg := BuildWeekly(rows, materialityPct)
	if err := fileio.WriteCSV(arts.WeeklyGranular(), weekly); err != nil {
		return nil, nil, err
	}
	if err := fileio.WriteCSV(arts.WeeklyAgg(), agg); err != nil {
		return nil, nil, err
	}

	log.Info("weekly complete", zap.Int("granular", len(weekly)), zap.Int("agg", len(agg)))
	return weekly, agg, nil
}
