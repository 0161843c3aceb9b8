package pipeline

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-rcm/revperf/internal/model"
)

func mlRow(week int, payer string) model.MLRow {
	return model.MLRow{DiagRow: model.DiagRow{AggRow: model.AggRow{
		Year: 2024, Week: week, Payer: payer,
		GroupEM: "Existing E/M Code", GroupEM2: "Level 3",
		VisitCount: 10,
	}}}
}

func TestPrioritizedTop6_PriorityAndDedup(t *testing.T) {
	entries := []highlight{
		{pct: 50, text: "ZZZ PAYER – Existing E/M Code Payment Amount* increased from avg 1.00 to 1.50"},
		{pct: 5, text: "BCBS – Existing E/M Code Payment Amount* increased from avg 1.00 to 1.05"},
		// Same subject, stronger swing: replaces the weaker entry.
		{pct: 30, text: "BCBS – Existing E/M Code Payment Amount* increased from avg 1.00 to 1.30"},
		{pct: 90, text: "AETNA – Existing E/M Code Denial % decreased from avg 0.50 to 0.05"},
	}

	got := prioritizedTop6(entries)
	parts := strings.Split(got, "; ")
	require.Len(t, parts, 3)

	// Priority payers first even when an unknown payer swings harder.
	assert.Contains(t, parts[0], "BCBS")
	assert.Contains(t, parts[0], "to 1.30")
	assert.Contains(t, parts[1], "AETNA")
	assert.Contains(t, parts[2], "ZZZ PAYER")
}

func TestPrioritizedTop6_CapsAtSix(t *testing.T) {
	var entries []highlight
	for _, p := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		entries = append(entries, highlight{pct: 10, text: p + " – X Payment Amount* increased from avg 1.00 to 1.10"})
	}
	got := prioritizedTop6(entries)
	assert.Len(t, strings.Split(got, "; "), 6)
}

func TestMetricHighlights_Directions(t *testing.T) {
	r := mlRow(14, "BCBS")
	// Payment above baseline is good.
	r.PaymentAmount = 1200
	r.PaymentAmountAvg = 1000
	// Denial above baseline is bad.
	r.DenialPct = model.Percent(0.20)
	r.DenialPctAvg = model.Percent(0.10)

	good, bad := metricHighlights([]model.MLRow{r})

	var goodTexts, badTexts []string
	for _, h := range good {
		goodTexts = append(goodTexts, h.text)
	}
	for _, h := range bad {
		badTexts = append(badTexts, h.text)
	}
	assert.Contains(t, strings.Join(goodTexts, ";"), "Payment Amount* increased from avg 1000.00 to 1200.00")
	assert.Contains(t, strings.Join(badTexts, ";"), "Denial % increased from avg 0.10 to 0.20")
}

func TestMetricHighlights_ZeroBalanceChargeSpecialCase(t *testing.T) {
	// Negative baseline: landing on zero is good, going positive is bad.
	onZero := mlRow(14, "BCBS")
	onZero.ZeroBalanceCollCharges = 0
	onZero.ZeroBalanceCollChargesAvg = -50

	positive := mlRow(14, "AETNA")
	positive.ZeroBalanceCollCharges = 25
	positive.ZeroBalanceCollChargesAvg = -50

	good, bad := metricHighlights([]model.MLRow{onZero, positive})

	assert.Len(t, good, 1)
	assert.Contains(t, good[0].text, "BCBS")
	assert.Len(t, bad, 1)
	assert.Contains(t, bad[0].text, "AETNA")
}

func TestBuildNarrative_FlagsAndVolumeLift(t *testing.T) {
	over := mlRow(14, "BCBS")
	over.PerformanceLabelVs85 = model.LabelOver
	over.PerformanceLabelVsBench = model.LabelAverage
	over.VisitCount = 100

	under := mlRow(14, "AETNA")
	under.PerformanceLabelVs85 = model.LabelUnder
	under.PerformanceLabelVsBench = model.LabelUnder
	under.VisitCount = 100

	small := mlRow(15, "CIGNA")
	small.PerformanceLabelVs85 = model.LabelAverage
	small.VisitCount = 1

	out := BuildNarrative([]model.MLRow{over, under, small}, model.ModelNone)
	require.Len(t, out, 3)

	assert.Equal(t, 1, out[0].OverPerformed85)
	assert.Equal(t, 0, out[0].UnderPerformed85)
	assert.Equal(t, 1, out[0].AveragePerformBench)
	assert.Equal(t, 1, out[1].UnderPerformed85)
	assert.Equal(t, 1, out[1].UnderPerformedBench)

	// Above-average volume without over-performance flags; the
	// over-performer and the low-volume group do not.
	assert.Equal(t, 0, out[0].VolumeWithoutRevenueLift)
	assert.Equal(t, 1, out[1].VolumeWithoutRevenueLift)
	assert.Equal(t, 0, out[2].VolumeWithoutRevenueLift)

	// No model ran: snippet empty, gap columns NaN.
	assert.Empty(t, out[0].MLNarrativeSummary)
	assert.True(t, math.IsNaN(out[0].MLDollarGapSum))
}

func TestBuildNarrative_MLSnippet(t *testing.T) {
	r := mlRow(14, "BCBS")
	r.HGBRateGap = -15
	r.HGBDollarGap = -1500
	r.HGBMaterialGapFlag = 1

	out := BuildNarrative([]model.MLRow{r}, model.ModelHGB)
	require.Len(t, out, 1)

	s := out[0].MLNarrativeSummary
	assert.Contains(t, s, "under-payment")
	assert.Contains(t, s, "$1,500")
	assert.Contains(t, s, "1 material flags")
	assert.Contains(t, s, "-15.00/visit")
	assert.InDelta(t, -1500, out[0].MLDollarGapSum, 1e-9)
}

func TestZeroBalanceBand(t *testing.T) {
	tests := []struct {
		name               string
		zb, cr, zbBl, crBl float64
		want               string
	}{
		{"below", 0.30, 0.8, 0.60, 0.8, "Below baseline"},
		{"above own baseline", 0.80, 0.8, 0.60, 0.8, "Above baseline"},
		{"above collection baseline", 0.74, 0.8, 0.60, 0.60, "Above baseline"},
		{"normal", 0.60, 0.8, 0.60, 0.8, "Normal range"},
		{"incomplete", math.NaN(), 0.8, 0.60, 0.8, "Collection data incomplete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, zeroBalanceBand(tt.zb, tt.cr, tt.zbBl, tt.crBl))
		})
	}
}

func TestBuildNarrative_ZeroBalanceJoinedSortedUnique(t *testing.T) {
	a := mlRow(14, "BCBS")
	a.ZeroBalanceCollRate = 0.60
	a.CollectionRate = 0.80
	b := mlRow(14, "AETNA")
	b.ZeroBalanceCollRate = 0.10
	b.CollectionRate = 0.80

	out := BuildNarrative([]model.MLRow{a, b}, model.ModelNone)
	require.Len(t, out, 2)

	// Both rows of the week carry the same joined narrative, sorted by text.
	assert.Equal(t, out[0].ZeroBalanceNarrative, out[1].ZeroBalanceNarrative)
	assert.True(t, strings.HasPrefix(out[0].ZeroBalanceNarrative, "AETNA"))
	assert.Contains(t, out[0].ZeroBalanceNarrative, "; BCBS")
}

func TestBuildNarrative_ZeroBalanceBaselinesSeparatePopulations(t *testing.T) {
	// Week 14 has a collection rate but no zero-balance rate; week 15 has
	// both. The collection baseline must average over its own two
	// observations, not be diluted by the single zero-balance count.
	sparse := mlRow(14, "BCBS")
	sparse.ZeroBalanceCollRate = model.Percent(math.NaN())
	sparse.CollectionRate = 0.90

	full := mlRow(15, "BCBS")
	full.ZeroBalanceCollRate = 0.90
	full.CollectionRate = 0.40

	out := BuildNarrative([]model.MLRow{sparse, full}, model.ModelNone)
	require.Len(t, out, 2)

	assert.Contains(t, out[0].ZeroBalanceNarrative, "Collection data incomplete")
	// crBaseline = (0.90+0.40)/2 = 0.65; zb 0.90 > 1.2*0.65 flags it.
	assert.Contains(t, out[1].ZeroBalanceNarrative, "Above baseline")
}

func TestBuildNarrative_WeeklyHighlightsAttached(t *testing.T) {
	r := mlRow(14, "BCBS")
	r.PaymentAmount = 1200
	r.PaymentAmountAvg = 1000
	r.DenialPct = model.Percent(0.2)
	r.DenialPctAvg = model.Percent(0.1)

	out := BuildNarrative([]model.MLRow{r}, model.ModelNone)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].WhatWentWell, "Payment Amount* increased")
	assert.Contains(t, out[0].WhatCanImprove, "Denial % increased")
}
