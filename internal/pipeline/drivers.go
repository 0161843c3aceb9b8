package pipeline

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

// DriverBreakdowns holds the three attribution views of the underpayment
// gap: which payers drive it, which visit classes drive it, and when it
// opened.
type DriverBreakdowns struct {
	ByPayer []model.PayerShortfallRow
	ByKey   []model.KeyShortfallRow
	ByTime  []model.TimeShortfallRow
}

// shortfalls extracts the negative-only decomposition from one aggregated
// row. Positive variances contribute nothing; a week that overpays never
// cancels a week that underpays.
func shortfalls(revenueVariance, expectedVsBenchmark float64) (vsExpected, vsBenchmark, incremental float64) {
	vsExpected = negOnly(revenueVariance)
	vsBenchmark = negOnly(expectedVsBenchmark)
	incremental = vsBenchmark - vsExpected
	return
}

// BuildDrivers attributes underpayment shortfalls by payer and by time from
// the aggregated rows, and by benchmark key from the granular rows.
func BuildDrivers(agg []model.AggRow, gran []model.WeeklyRow) DriverBreakdowns {
	type acc struct {
		expected, benchmark, incremental float64
		visits                           int
	}

	byPayer := make(map[string]*acc)
	byTime := make(map[yearWeek]*acc)
	for _, a := range agg {
		e, b, inc := shortfalls(a.RevenueVariance, a.ExpectedVsBenchmarkVariance)

		p := byPayer[a.Payer]
		if p == nil {
			p = &acc{}
			byPayer[a.Payer] = p
		}
		p.expected += e
		p.benchmark += b
		p.incremental += inc
		p.visits += a.VisitCount

		tk := yearWeek{a.Year, a.Week}
		t := byTime[tk]
		if t == nil {
			t = &acc{}
			byTime[tk] = t
		}
		t.expected += e
		t.benchmark += b
		t.incremental += inc
		t.visits += a.VisitCount
	}

	type keyID struct {
		payer, groupEM, groupEM2, bench string
	}
	byKey := make(map[keyID]*acc)
	for _, g := range gran {
		variance := g.PaymentAmount - g.ExpectedPayment
		e, b, inc := shortfalls(variance, g.ExpectedPayment-g.BenchmarkPayment)

		id := keyID{g.Payer, g.GroupEM, g.GroupEM2, g.BenchmarkKey}
		k := byKey[id]
		if k == nil {
			k = &acc{}
			byKey[id] = k
		}
		k.expected += e
		k.benchmark += b
		k.incremental += inc
		k.visits += g.VisitCount
	}

	toShortfall := func(a *acc) model.Shortfall {
		return model.Shortfall{
			VsExpectedDollar:     a.expected,
			VsBenchmarkDollar:    a.benchmark,
			IncrementalDollar:    a.incremental,
			TotalVisitCount:      a.visits,
			VsExpectedAbsDollar:  math.Abs(a.expected),
			VsBenchmarkAbsDollar: math.Abs(a.benchmark),
			IncrementalAbsDollar: math.Abs(a.incremental),
		}
	}

	var out DriverBreakdowns
	for payer, a := range byPayer {
		out.ByPayer = append(out.ByPayer, model.PayerShortfallRow{Payer: payer, Shortfall: toShortfall(a)})
	}
	// Worst incremental shortfall first (most negative).
	sort.Slice(out.ByPayer, func(i, j int) bool {
		if out.ByPayer[i].IncrementalDollar != out.ByPayer[j].IncrementalDollar {
			return out.ByPayer[i].IncrementalDollar < out.ByPayer[j].IncrementalDollar
		}
		return out.ByPayer[i].Payer < out.ByPayer[j].Payer
	})

	for id, a := range byKey {
		out.ByKey = append(out.ByKey, model.KeyShortfallRow{
			Payer: id.payer, GroupEM: id.groupEM, GroupEM2: id.groupEM2, BenchmarkKey: id.bench,
			Shortfall: toShortfall(a),
		})
	}
	sort.Slice(out.ByKey, func(i, j int) bool {
		if out.ByKey[i].IncrementalDollar != out.ByKey[j].IncrementalDollar {
			return out.ByKey[i].IncrementalDollar < out.ByKey[j].IncrementalDollar
		}
		return out.ByKey[i].BenchmarkKey < out.ByKey[j].BenchmarkKey
	})

	for tk, a := range byTime {
		out.ByTime = append(out.ByTime, model.TimeShortfallRow{Year: tk.year, Week: tk.week, Shortfall: toShortfall(a)})
	}
	sort.Slice(out.ByTime, func(i, j int) bool {
		if out.ByTime[i].Year != out.ByTime[j].Year {
			return out.ByTime[i].Year < out.ByTime[j].Year
		}
		return out.ByTime[i].Week < out.ByTime[j].Week
	})

	return out
}

// DriversFile reads the weekly outputs and writes the three driver CSVs.
func DriversFile(arts Artifacts) (*DriverBreakdowns, error) {
	log := zap.L().With(zap.String("stage", "drivers"))

	agg, err := fileio.ReadCSV[model.AggRow](arts.WeeklyAgg())
	if err != nil {
		return nil, err
	}
	gran, err := fileio.ReadCSV[model.WeeklyRow](arts.WeeklyGranular())
	if err != nil {
		return nil, err
	}

	out := BuildDrivers(agg, gran)
	if err := fileio.WriteCSV(arts.PayerDrivers(), out.ByPayer); err != nil {
		return nil, err
	}
	if err := fileio.WriteCSV(arts.KeyDrivers(), out.ByKey); err != nil {
		return nil, err
	}
	if err := fileio.WriteCSV(arts.TimeDrivers(), out.ByTime); err != nil {
		return nil, err
	}

	log.Info("drivers complete",
		zap.Int("payers", len(out.ByPayer)),
		zap.Int("keys", len(out.ByKey)),
		zap.Int("weeks", len(out.ByTime)),
	)
	return &out, nil
}
