package pipeline

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
)

func TestIsClose(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		rtol float64
		want bool
	}{
		{"exact", 100, 100, 1e-3, true},
		{"within relative", 100.05, 100, 1e-3, true},
		{"outside relative", 100.2, 100, 1e-3, false},
		{"both NaN", math.NaN(), math.NaN(), 1e-3, true},
		{"one NaN", math.NaN(), 100, 1e-3, false},
		{"near zero absolute", 1e-7, 0, 1e-3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isClose(tt.a, tt.b, tt.rtol))
		})
	}
}

func validationSource(t *testing.T) *fileio.Table {
	t.Helper()
	line := func(payer, invoice, cpt, payment, expected string) []string {
		return []string{"2024", "14", payer, "Existing E/M Code", "Level 3", invoice, cpt, "100", payment, expected, "", "", "", "", "", "", ""}
	}
	return rawTable(rawHeader,
		line("BCBS", "INV-1", "99214", "100", "90"),
		line("BCBS", "INV-1", "99213", "20", "10"),
		line("BCBS", "INV-2", "99214", "140", "130"),
		line("BCBS", "INV-2", "99213", "20", "10"),
		line("BCBS", "INV-3", "99214", "180", "150"),
		line("BCBS", "INV-3", "99213", "20", "10"),
	)
}

// processSource runs the cleaning chain so the validator has artifacts to
// audit against its own raw recompute.
func processSource(t *testing.T, raw *fileio.Table) ([]model.EnhancedRow, []model.WeeklyRow) {
	t.Helper()
	res, err := Preprocess(raw)
	require.NoError(t, err)
	enhanced := Enhance(res.Rows)
	weekly, _ := BuildWeekly(enhanced, 0.03)
	return enhanced, weekly
}

func TestValidateSample_AllChecksPass(t *testing.T) {
	raw := validationSource(t)
	enhanced, weekly := processSource(t, raw)

	res, err := ValidateSample(raw, enhanced, weekly, SampleOptions{Size: 30, Seed: 42})
	require.NoError(t, err)

	// 3 invoices x 4 invoice checks + 1 key-level rate check.
	require.Len(t, res.Details, 13)
	assert.Empty(t, res.Mismatches)
	for _, s := range res.Summary {
		assert.Equal(t, s.Total, s.Pass)
		assert.Zero(t, s.Fail)
		assert.InDelta(t, 1.0, s.PassRate, 1e-9)
	}
}

func TestValidateSample_DetectsCleaningDrift(t *testing.T) {
	raw := validationSource(t)

	// Simulate a drifted cleaning chain: unsorted CPT set in the key and
	// payments off by a factor of ten. The artifacts are internally
	// consistent, so only a recompute from the raw source can see it.
	const driftedKey = "BCBS|Existing E/M Code|Level 3|['99214', '99213']"
	cleaned := []model.InvoiceRow{
		invoiceLine("INV-1", driftedKey, 1200, 100),
		invoiceLine("INV-2", driftedKey, 1600, 140),
		invoiceLine("INV-3", driftedKey, 2000, 160),
	}
	enhanced := Enhance(cleaned)
	weekly, _ := BuildWeekly(enhanced, 0.03)

	res, err := ValidateSample(raw, enhanced, weekly, SampleOptions{Size: 30, Seed: 42})
	require.NoError(t, err)
	require.NotEmpty(t, res.Mismatches)

	failed := make(map[string]int)
	for _, m := range res.Mismatches {
		failed[m.Check]++
	}
	// Every sampled invoice carries the drifted key and the misparsed total.
	assert.Equal(t, 3, failed["Benchmark_Key"])
	assert.Equal(t, 3, failed["Invoice_Total_Payment"])
	// The re-derived key does not exist in the weekly model at all.
	assert.Equal(t, 1, failed["Expected_Amount_85_EM_invoice_level"])

	for _, s := range res.Summary {
		if s.Check == "Benchmark_Key" {
			assert.Zero(t, s.Pass)
		}
	}
}

func TestValidateSample_DetectsTamperedValue(t *testing.T) {
	raw := validationSource(t)
	enhanced, weekly := processSource(t, raw)

	// Corrupt one persisted invoice total past the tolerance.
	for i := range enhanced {
		if enhanced[i].InvoiceNumber == "INV-1" {
			enhanced[i].InvoiceTotalPayment += 5
		}
	}

	res, err := ValidateSample(raw, enhanced, weekly, SampleOptions{Size: 30, Seed: 42})
	require.NoError(t, err)

	require.NotEmpty(t, res.Mismatches)
	found := false
	for _, m := range res.Mismatches {
		if m.Check == "Invoice_Total_Payment" && m.InvoiceNumber == "INV-1" {
			found = true
			assert.InDelta(t, 5, m.Delta, 1e-9)
		}
	}
	assert.True(t, found)

	for _, s := range res.Summary {
		if s.Check == "Invoice_Total_Payment" {
			assert.Equal(t, 1, s.Fail)
			assert.InDelta(t, 2.0/3.0, s.PassRate, 1e-9)
		}
	}
}

func TestValidateSample_LostInvoiceFailsItsChecks(t *testing.T) {
	raw := validationSource(t)
	enhanced, weekly := processSource(t, raw)

	var kept []model.EnhancedRow
	for _, e := range enhanced {
		if e.InvoiceNumber != "INV-2" {
			kept = append(kept, e)
		}
	}

	res, err := ValidateSample(raw, kept, weekly, SampleOptions{Size: 30, Seed: 42})
	require.NoError(t, err)

	var lost int
	for _, m := range res.Mismatches {
		if m.InvoiceNumber == "INV-2" {
			lost++
		}
	}
	assert.Equal(t, 4, lost)
}

func TestValidateSample_MissingSourceColumn(t *testing.T) {
	header := make([]string, 0, len(rawHeader))
	for _, h := range rawHeader {
		if h == "Payment Amount*" {
			continue
		}
		header = append(header, h)
	}
	raw := rawTable(header)

	_, err := ValidateSample(raw, nil, nil, SampleOptions{Size: 30, Seed: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Payment Amount*")
}

func TestValidateSample_DeterministicAndCapped(t *testing.T) {
	rows := make([][]string, 0, 80)
	for i := 0; i < 80; i++ {
		rows = append(rows, []string{"2024", "14", "BCBS", "Existing E/M Code", "Level 3",
			fmt.Sprintf("INV-%03d", i), "99213", "100", "100", "90", "", "", "", "", "", "", ""})
	}
	raw := rawTable(rawHeader, rows...)
	enhanced, weekly := processSource(t, raw)

	opts := SampleOptions{Size: 30, Seed: 42}
	first, err := ValidateSample(raw, enhanced, weekly, opts)
	require.NoError(t, err)
	second, err := ValidateSample(raw, enhanced, weekly, opts)
	require.NoError(t, err)

	// 30 sampled invoices, not 80.
	require.Len(t, first.Details, 30*4+1)
	require.Equal(t, len(first.Details), len(second.Details))
	for i := range first.Details {
		assert.Equal(t, first.Details[i].InvoiceNumber, second.Details[i].InvoiceNumber)
		assert.Equal(t, first.Details[i].Check, second.Details[i].Check)
		assert.Equal(t, first.Details[i].RecalcValue, second.Details[i].RecalcValue)
		assert.Equal(t, first.Details[i].Match, second.Details[i].Match)
	}
}
