// Package mlrate trains a per-visit payment-rate model over the aggregated
// weekly rows and annotates each row with its expected rate, the gap to the
// actual rate, and the dollar impact of that gap.
package mlrate

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/meridian-rcm/revperf/internal/model"
)

// numericFeatures extracts the raw numeric feature vector of a row. NaN is
// allowed here; the encoder imputes it.
func numericFeatures(d model.DiagRow) []float64 {
	return []float64{
		float64(d.VisitCount),
		d.AvgChargeEMWeight,
		d.LabsPerVisit,
		d.ProcedurePerVisit,
		d.RadiologyCount,
		float64(d.ZeroBalanceCollRate),
		float64(d.CollectionRate),
		float64(d.DenialPct),
		d.NRVGapDollar,
		float64(d.NRVGapPct),
		float64(d.RemainingChargesPct),
		d.ExpectedPayment,
		d.BenchmarkPayment,
	}
}

func categoricalFeatures(d model.DiagRow) [3]string {
	return [3]string{d.Payer, d.GroupEM, d.GroupEM2}
}

// encoder turns rows into dense feature vectors: median-imputed numerics
// followed by one-hot categoricals. Categories are learned at fit time;
// unseen categories encode as all zeros instead of failing.
type encoder struct {
	medians []float64
	cats    [3][]string
	catIdx  [3]map[string]int
	width   int
}

func fitEncoder(rows []model.DiagRow) *encoder {
	e := &encoder{}
	if len(rows) == 0 {
		return e
	}

	numWidth := len(numericFeatures(rows[0]))
	e.medians = make([]float64, numWidth)
	for j := 0; j < numWidth; j++ {
		var col []float64
		for _, d := range rows {
			if v := numericFeatures(d)[j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			e.medians[j] = 0
			continue
		}
		m, err := stats.Median(col)
		if err != nil {
			m = 0
		}
		e.medians[j] = m
	}

	for c := 0; c < 3; c++ {
		seen := make(map[string]struct{})
		for _, d := range rows {
			seen[categoricalFeatures(d)[c]] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.cats[c] = cats
		e.catIdx[c] = make(map[string]int, len(cats))
		for i, v := range cats {
			e.catIdx[c][v] = i
		}
	}

	e.width = numWidth + len(e.cats[0]) + len(e.cats[1]) + len(e.cats[2])
	return e
}

func (e *encoder) encode(d model.DiagRow) []float64 {
	x := make([]float64, e.width)
	for j, v := range numericFeatures(d) {
		if math.IsNaN(v) {
			v = e.medians[j]
		}
		x[j] = v
	}
	off := len(e.medians)
	cf := categoricalFeatures(d)
	for c := 0; c < 3; c++ {
		if i, ok := e.catIdx[c][cf[c]]; ok {
			x[off+i] = 1
		}
		off += len(e.cats[c])
	}
	return x
}

func (e *encoder) encodeAll(rows []model.DiagRow) [][]float64 {
	out := make([][]float64, len(rows))
	for i, d := range rows {
		out[i] = e.encode(d)
	}
	return out
}
