package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

// BuildCPTDrivers attributes the 85% E/M payment gap to individual CPT
// codes. It works from the enhanced invoice rows, the only grain where CPT
// codes still exist, and surfaces the worst total dollar impact first.
func BuildCPTDrivers(rows []model.EnhancedRow) []model.CPTDriverRow {
	type cptKey struct {
		year, week               int
		payer, groupEM, groupEM2 string
		cpt                      string
	}
	type acc struct {
		invoices  map[string]struct{}
		n         float64
		payment   float64
		expected  float64
		impact    float64
		underpaid bool
	}

	buckets := make(map[cptKey]*acc)
	for _, r := range rows {
		k := cptKey{r.Year, r.Week, r.Payer, r.GroupEM, r.GroupEM2, r.CPTCode}
		a := buckets[k]
		if a == nil {
			a = &acc{invoices: make(map[string]struct{})}
			buckets[k] = a
		}
		a.invoices[r.InvoiceNumber] = struct{}{}
		a.n++
		a.payment += r.PaymentAmount
		a.expected += r.Expected85EM
		a.impact += r.PaymentAmount - r.Expected85EM
		if r.PaymentAmount < r.Expected85EM {
			a.underpaid = true
		}
	}

	out := make([]model.CPTDriverRow, 0, len(buckets))
	for k, a := range buckets {
		out = append(out, model.CPTDriverRow{
			Year: k.year, Week: k.week,
			Payer: k.payer, GroupEM: k.groupEM, GroupEM2: k.groupEM2,
			CPTCode: k.cpt,

			TotalVisits:         len(a.invoices),
			AvgActualRate:       a.payment / a.n,
			AvgExpectedRate85EM: a.expected / a.n,
			TotalDollarImpact:   a.impact,
			Underpaid:           a.underpaid,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDollarImpact != out[j].TotalDollarImpact {
			return out[i].TotalDollarImpact < out[j].TotalDollarImpact
		}
		if out[i].CPTCode != out[j].CPTCode {
			return out[i].CPTCode < out[j].CPTCode
		}
		return out[i].Payer < out[j].Payer
	})
	return out
}

// CPTDriversFile reads the enhanced invoice CSV and writes the CPT driver
// breakdown.
func CPTDriversFile(arts Artifacts) ([]model.CPTDriverRow, error) {
	log := zap.L().With(zap.String("stage", "cpt_drivers"))

	rows, err := fileio.ReadCSV[model.EnhancedRow](arts.Enhanced())
	if err != nil {
		return nil, err
	}

	out := BuildCPTDrivers(rows)
	if err := fileio.WriteCSV(arts.CPTDrivers(), out); err != nil {
		return nil, err
	}

	log.Info("cpt drivers complete", zap.Int("rows", len(out)))
	return out, nil
}
