package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

// Payers reviewed first when narrative space runs out. Order matters.
var priorityPayers = []string{
	"BCBS", "AETNA", "MEDICAID", "SELF PAY", "UNITED HEALTHCARE",
	"CIGNA", "HUMANA", "TRICARE", "MEDICARE",
}

// narrativeMetric ties a spreadsheet-facing metric label to its value and
// baseline on a row, with the direction that counts as improvement.
type narrativeMetric struct {
	legacy       string
	value        func(model.MLRow) float64
	baseline     func(model.MLRow) float64
	increaseGood bool
	zbcSpecial   bool
}

var narrativeMetrics = []narrativeMetric{
	{
		legacy:   "Charge Billed Balance",
		value:    func(r model.MLRow) float64 { return r.ChargeBilledBalance },
		baseline: func(r model.MLRow) float64 { return r.ChargeBilledBalanceAvg },
	},
	{
		legacy:     "Zero Balance - Collection * Charges",
		value:      func(r model.MLRow) float64 { return r.ZeroBalanceCollCharges },
		baseline:   func(r model.MLRow) float64 { return r.ZeroBalanceCollChargesAvg },
		zbcSpecial: true,
	},
	{
		legacy:       "NRV Zero Balance*",
		value:        func(r model.MLRow) float64 { return r.NRVZeroBalance },
		baseline:     func(r model.MLRow) float64 { return r.NRVZeroBalanceAvg },
		increaseGood: true,
	},
	{
		legacy:       "Zero Balance Collection Rate",
		value:        func(r model.MLRow) float64 { return float64(r.ZeroBalanceCollRate) },
		baseline:     func(r model.MLRow) float64 { return float64(r.ZeroBalanceCollRateAvg) },
		increaseGood: true,
	},
	{
		legacy:       "Collection Rate*",
		value:        func(r model.MLRow) float64 { return float64(r.CollectionRate) },
		baseline:     func(r model.MLRow) float64 { return float64(r.CollectionRateAvg) },
		increaseGood: true,
	},
	{
		legacy:       "Payment Amount*",
		value:        func(r model.MLRow) float64 { return r.PaymentAmount },
		baseline:     func(r model.MLRow) float64 { return r.PaymentAmountAvg },
		increaseGood: true,
	},
	{
		legacy:   "Denial %",
		value:    func(r model.MLRow) float64 { return float64(r.DenialPct) },
		baseline: func(r model.MLRow) float64 { return float64(r.DenialPctAvg) },
	},
	{
		legacy:   "NRV Gap ($)",
		value:    func(r model.MLRow) float64 { return r.NRVGapDollar },
		baseline: func(r model.MLRow) float64 { return r.NRVGapDollarAvg },
	},
	{
		legacy:   "NRV Gap (%)",
		value:    func(r model.MLRow) float64 { return float64(r.NRVGapPct) },
		baseline: func(r model.MLRow) float64 { return float64(r.NRVGapPctAvg) },
	},
	{
		legacy:   "% of Remaining Charges",
		value:    func(r model.MLRow) float64 { return float64(r.RemainingChargesPct) },
		baseline: func(r model.MLRow) float64 { return float64(r.RemainingChargesPctAvg) },
	},
	{
		legacy:   "NRV Gap Sum ($)",
		value:    func(r model.MLRow) float64 { return r.NRVGapSumDollar },
		baseline: func(r model.MLRow) float64 { return r.NRVGapSumDollarAvg },
	},
}

type highlight struct {
	pct  float64
	text string
}

// prioritizedTop6 dedups highlights by their subject (text before "from
// avg"), keeps the strongest swing per subject, ranks priority payers
// first, and returns at most six joined entries.
func prioritizedTop6(entries []highlight) string {
	type ranked struct {
		prio int
		pct  float64
		text string
	}
	seen := make(map[string]ranked)
	var order []string

	for _, e := range entries {
		subject := strings.TrimSpace(strings.SplitN(e.text, "from avg", 2)[0])
		payer := strings.ToUpper(strings.TrimSpace(strings.SplitN(subject, "–", 2)[0]))
		prio := len(priorityPayers)
		for i, p := range priorityPayers {
			if p == payer {
				prio = i
				break
			}
		}
		cur, ok := seen[subject]
		if !ok {
			order = append(order, subject)
		}
		if !ok || prio < cur.prio || (prio == cur.prio && e.pct > cur.pct) {
			seen[subject] = ranked{prio: prio, pct: e.pct, text: e.text}
		}
	}

	list := make([]ranked, 0, len(order))
	for _, subject := range order {
		list = append(list, seen[subject])
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].prio != list[j].prio {
			return list[i].prio < list[j].prio
		}
		return list[i].pct > list[j].pct
	})
	if len(list) > 6 {
		list = list[:6]
	}

	texts := make([]string, len(list))
	for i, r := range list {
		texts[i] = r.text
	}
	return strings.Join(texts, "; ")
}

// metricHighlights splits a week's metric swings against baseline into the
// good and bad buckets.
func metricHighlights(rows []model.MLRow) (good, bad []highlight) {
	for _, r := range rows {
		for _, m := range narrativeMetrics {
			act, avg := m.value(r), m.baseline(r)
			if math.IsNaN(act) || math.IsNaN(avg) || avg == 0 {
				continue
			}
			delta := act - avg
			pct := math.Abs(delta/avg) * 100
			verb := "decreased"
			if delta > 0 {
				verb = "increased"
			}
			h := highlight{
				pct:  pct,
				text: fmt.Sprintf("%s – %s %s %s from avg %.2f to %.2f", r.Payer, r.GroupEM, m.legacy, verb, avg, act),
			}

			// A negative collection-charge baseline flips the usual
			// reading: landing on zero is the win, going positive is not.
			if m.zbcSpecial && avg < 0 {
				switch {
				case act == 0:
					good = append(good, h)
					continue
				case act > 0:
					bad = append(bad, h)
					continue
				}
			}
			improved := (delta > 0 && m.increaseGood) || (delta < 0 && !m.increaseGood)
			if improved {
				good = append(good, h)
			} else {
				bad = append(bad, h)
			}
		}
	}
	return good, bad
}

// mlHotspot is a group's ML gap rollup for the narrative snippet.
type mlHotspot struct {
	dollarSum float64
	flagSum   int
	gapSum    float64
	gapN      int
}

var dollarPrinter = message.NewPrinter(language.AmericanEnglish)

func (h mlHotspot) snippet() string {
	if h.gapN == 0 {
		return ""
	}
	direction := "over"
	if h.dollarSum < 0 {
		direction = "under"
	}
	return dollarPrinter.Sprintf("ML signals %s-payment ≈ $%.0f (%d material flags; avg rate gap %+.2f/visit).",
		direction, math.Abs(h.dollarSum), h.flagSum, h.gapSum/float64(h.gapN))
}

// zeroBalanceBand classifies a group's zero-balance collection rate against
// its own historical baseline and the overall collection-rate baseline.
func zeroBalanceBand(zb, cr, zbBaseline, crBaseline float64) string {
	if math.IsNaN(zb) || math.IsNaN(cr) || math.IsNaN(zbBaseline) || math.IsNaN(crBaseline) {
		return "Collection data incomplete"
	}
	switch {
	case zb < 0.75*zbBaseline:
		return "Below baseline"
	case zb > 1.25*zbBaseline || zb > 1.2*crBaseline:
		return "Above baseline"
	default:
		return "Normal range"
	}
}

// BuildNarrative produces the final deliverable rows: performance flags,
// weekly revenue-cycle highlights, ML hotspot snippets when a model ran,
// and the zero-balance collection narrative.
func BuildNarrative(rows []model.MLRow, kind model.ModelKind) []model.NarrativeRow {
	byWeek := make(map[yearWeek][]model.MLRow)
	var visitSum float64
	for _, r := range rows {
		byWeek[yearWeek{r.Year, r.Week}] = append(byWeek[yearWeek{r.Year, r.Week}], r)
		visitSum += float64(r.VisitCount)
	}
	visitMean := visitSum / float64(len(rows))

	wellByWeek := make(map[yearWeek]string, len(byWeek))
	improveByWeek := make(map[yearWeek]string, len(byWeek))
	for yw, sub := range byWeek {
		good, bad := metricHighlights(sub)
		wellByWeek[yw] = prioritizedTop6(good)
		improveByWeek[yw] = prioritizedTop6(bad)
	}

	hasML := kind != model.ModelNone && kind != ""
	hotspots := make(map[model.GroupKey]mlHotspot)
	if hasML {
		for _, r := range rows {
			h := hotspots[r.Key()]
			if !math.IsNaN(r.HGBDollarGap) {
				h.dollarSum += r.HGBDollarGap
			}
			h.flagSum += r.HGBMaterialGapFlag
			if !math.IsNaN(r.HGBRateGap) {
				h.gapSum += r.HGBRateGap
				h.gapN++
			}
			hotspots[r.Key()] = h
		}
	}

	zbNarrative := buildZeroBalanceNarrative(rows)

	out := make([]model.NarrativeRow, 0, len(rows))
	for _, r := range rows {
		n := model.NarrativeRow{MLRow: r}
		yw := yearWeek{r.Year, r.Week}

		if hasML {
			h := hotspots[r.Key()]
			n.MLDollarGapSum = h.dollarSum
			n.MLMaterialFlagSum = h.flagSum
			if h.gapN > 0 {
				n.MLRateGapMean = h.gapSum / float64(h.gapN)
			} else {
				n.MLRateGapMean = math.NaN()
			}
			n.MLNarrativeSummary = h.snippet()
		} else {
			n.MLDollarGapSum = math.NaN()
			n.MLRateGapMean = math.NaN()
		}

		n.WhatWentWell = wellByWeek[yw]
		n.WhatCanImprove = improveByWeek[yw]

		n.OverPerformed85 = boolFlag(r.PerformanceLabelVs85 == model.LabelOver)
		n.UnderPerformed85 = boolFlag(r.PerformanceLabelVs85 == model.LabelUnder)
		n.AveragePerform85 = boolFlag(r.PerformanceLabelVs85 == model.LabelAverage)
		n.OverPerformedBench = boolFlag(r.PerformanceLabelVsBench == model.LabelOver)
		n.UnderPerformedBench = boolFlag(r.PerformanceLabelVsBench == model.LabelUnder)
		n.AveragePerformBench = boolFlag(r.PerformanceLabelVsBench == model.LabelAverage)

		// Busy groups that still fail to over-perform: volume is not
		// converting into revenue.
		n.VolumeWithoutRevenueLift = boolFlag(float64(r.VisitCount) > visitMean && n.OverPerformed85 == 0)

		n.ZeroBalanceNarrative = zbNarrative[yw]

		out = append(out, n)
	}
	return out
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// buildZeroBalanceNarrative bands each group's zero-balance collection rate
// against its historical baseline and joins the per-week narratives as a
// sorted unique list.
func buildZeroBalanceNarrative(rows []model.MLRow) map[yearWeek]string {
	type blAcc struct {
		zb, cr   float64
		zbN, crN float64
	}
	baselines := make(map[model.BaselineKey]*blAcc)
	for _, r := range rows {
		b := baselines[r.Baseline()]
		if b == nil {
			b = &blAcc{}
			baselines[r.Baseline()] = b
		}
		if zb := float64(r.ZeroBalanceCollRate); !math.IsNaN(zb) {
			b.zb += zb
			b.zbN++
		}
		if cr := float64(r.CollectionRate); !math.IsNaN(cr) {
			b.cr += cr
			b.crN++
		}
	}

	parts := make(map[yearWeek]map[string]struct{})
	for _, r := range rows {
		yw := yearWeek{r.Year, r.Week}
		b := baselines[r.Baseline()]

		zbBaseline, crBaseline := math.NaN(), math.NaN()
		if b != nil && b.zbN > 0 {
			zbBaseline = b.zb / b.zbN
		}
		if b != nil && b.crN > 0 {
			crBaseline = b.cr / b.crN
		}
		band := zeroBalanceBand(float64(r.ZeroBalanceCollRate), float64(r.CollectionRate), zbBaseline, crBaseline)
		text := r.Payer + " – " + r.GroupEM + " – " + r.GroupEM2 + " – " + band

		if parts[yw] == nil {
			parts[yw] = make(map[string]struct{})
		}
		parts[yw][text] = struct{}{}
	}

	out := make(map[yearWeek]string, len(parts))
	for yw, set := range parts {
		texts := make([]string, 0, len(set))
		for t := range set {
			texts = append(texts, t)
		}
		sort.Strings(texts)
		out[yw] = strings.Join(texts, "; ")
	}
	return out
}

// NarrativeFile reads the ML diagnostics CSV and writes the final workbook.
func NarrativeFile(arts Artifacts, kind model.ModelKind) ([]model.NarrativeRow, error) {
	log := zap.L().With(zap.String("stage", "narrative"))

	rows, err := fileio.ReadCSV[model.MLRow](arts.MLDiagnostics())
	if err != nil {
		return nil, err
	}

	out := BuildNarrative(rows, kind)
	if err := fileio.WriteXLSX(arts.Narrative(), "Weekly Performance", out); err != nil {
		return nil, err
	}

	log.Info("narrative complete", zap.Int("rows", len(out)))
	return out, nil
}
