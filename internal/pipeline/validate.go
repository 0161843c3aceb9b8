package pipeline

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
	"github.com/meridian-rcm/revperf/internal/parse"
)

// SampleOptions controls the invoice sample drawn for recompute validation.
// The seed is fixed by default so reruns audit the same invoices.
type SampleOptions struct {
	Size int
	Seed int64
}

// Tolerances per check, matching the sensitivity of each derivation chain.
const (
	tolInvoiceTotal = 1e-3
	tolBenchmarkAvg = 1e-3
	tolVariance     = 1e-2
	tolExpectedRate = 1e-3
	tolAbsolute     = 1e-6
)

// SampleResult is the validator's output set.
type SampleResult struct {
	Details    []model.SampleCheckRow
	Summary    []model.SampleSummaryRow
	Mismatches []model.SampleCheckRow
}

// isClose reports approximate equality with relative tolerance against the
// recomputed value. Two NaNs agree: an undefined metric recomputing as
// undefined is a pass.
func isClose(a, b, rtol float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) <= tolAbsolute+rtol*math.Abs(b)
}

// rawInvoice is one invoice rebuilt from the raw export, outside the
// pipeline's own cleaning path.
type rawInvoice struct {
	payer, groupEM, groupEM2 string
	cpts                     map[string]struct{}
	payment                  float64
	expected                 []float64
}

// rawKey rebuilds the benchmark key from scratch: sorted unique CPT set in
// the bracketed-list form, prefixed by the visit-class columns. Deliberately
// not the preprocessor's key builder, so a drift there shows up here.
func (inv *rawInvoice) rawKey() string {
	cpts := make([]string, 0, len(inv.cpts))
	for c := range inv.cpts {
		cpts = append(cpts, c)
	}
	sort.Strings(cpts)
	for i, c := range cpts {
		cpts[i] = "'" + c + "'"
	}
	list := "[" + strings.Join(cpts, ", ") + "]"
	return inv.payer + "|" + inv.groupEM + "|" + inv.groupEM2 + "|" + list
}

// deriveRawInvoices rebuilds the per-invoice facts straight from the raw
// export: forward-fills the identity block, skips report total rows, and
// accumulates payments, expected amounts, and CPT sets per invoice. Rows
// with no invoice or payer anywhere in their block are skipped, mirroring
// what the pipeline quarantines.
func deriveRawInvoices(t *fileio.Table) (map[string]*rawInvoice, error) {
	cols := map[string]int{}
	var missing []string
	for _, name := range []string{
		model.RawColPayer, model.RawColGroupEM, model.RawColGroup2, model.RawColInvoice,
		"Charge CPT Code", "Payment Amount*", "Expected Amount (85% E/M)",
	} {
		idx := t.Col(name)
		if idx < 0 {
			missing = append(missing, name)
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("validate: source missing columns: %s", strings.Join(missing, ", "))
	}

	invoices := make(map[string]*rawInvoice)
	var payer, groupEM, groupEM2, invoice string
	for _, row := range t.Rows {
		if totalRowRE.MatchString(t.Cell(row, 0)) {
			continue
		}
		if v := strings.TrimSpace(t.Cell(row, cols[model.RawColPayer])); v != "" {
			payer = v
		}
		if v := strings.TrimSpace(t.Cell(row, cols[model.RawColGroupEM])); v != "" {
			groupEM = v
		}
		if v := strings.TrimSpace(t.Cell(row, cols[model.RawColGroup2])); v != "" {
			groupEM2 = v
		}
		if v := strings.TrimSpace(t.Cell(row, cols[model.RawColInvoice])); v != "" {
			invoice = v
		}
		if invoice == "" || payer == "" {
			continue
		}

		inv := invoices[invoice]
		if inv == nil {
			inv = &rawInvoice{
				payer: payer, groupEM: groupEM, groupEM2: groupEM2,
				cpts: make(map[string]struct{}),
			}
			invoices[invoice] = inv
		}
		if cpt := strings.TrimSpace(t.Cell(row, cols["Charge CPT Code"])); cpt != "" {
			inv.cpts[cpt] = struct{}{}
		}
		inv.payment += parse.FloatOr(t.Cell(row, cols["Payment Amount*"]), 0)
		inv.expected = append(inv.expected, parse.FloatOr(t.Cell(row, cols["Expected Amount (85% E/M)"]), 0))
	}
	return invoices, nil
}

// ValidateSample draws a deterministic sample of invoices and audits the
// pipeline's artifacts against values re-derived directly from the raw
// export. The recompute never touches intermediate outputs: keys, invoice
// totals, and key-level expected rates are all rebuilt from source, so a
// drift anywhere in the cleaning chain surfaces as a mismatch.
func ValidateSample(raw *fileio.Table, enhanced []model.EnhancedRow, weekly []model.WeeklyRow, opts SampleOptions) (*SampleResult, error) {
	if opts.Size == 0 {
		opts.Size = 30
	}

	invoices, err := deriveRawInvoices(raw)
	if err != nil {
		return nil, err
	}

	// Key-level facts over the full raw population. Benchmarks computed
	// from the sample alone would validate against a different population
	// than the pipeline saw.
	keys := make(map[string]string, len(invoices))
	benchSum := make(map[string]float64)
	benchN := make(map[string]int)
	expSum := make(map[string]float64)
	expN := make(map[string]int)
	for number, inv := range invoices {
		key := inv.rawKey()
		keys[number] = key
		benchSum[key] += inv.payment
		benchN[key]++
		for _, e := range inv.expected {
			expSum[key] += e
			expN[key]++
		}
	}

	enhancedByInvoice := make(map[string]model.EnhancedRow)
	for _, e := range enhanced {
		if _, seen := enhancedByInvoice[e.InvoiceNumber]; !seen {
			enhancedByInvoice[e.InvoiceNumber] = e
		}
	}
	weeklyRateByKey := make(map[string]float64)
	for _, w := range weekly {
		if _, seen := weeklyRateByKey[w.BenchmarkKey]; !seen {
			weeklyRateByKey[w.BenchmarkKey] = w.ExpectedRate85EM
		}
	}

	var res SampleResult
	record := func(row model.SampleCheckRow) {
		res.Details = append(res.Details, row)
		if !row.Match {
			res.Mismatches = append(res.Mismatches, row)
		}
	}
	numeric := func(key, invoice, check string, processed, recalc, rtol float64) {
		record(model.SampleCheckRow{
			BenchmarkKey:   key,
			InvoiceNumber:  invoice,
			Check:          check,
			ProcessedValue: formatValue(processed),
			RecalcValue:    formatValue(recalc),
			Delta:          processed - recalc,
			Match:          isClose(processed, recalc, rtol),
		})
	}

	checkedKeys := make(map[string]struct{})
	for _, number := range sampleInvoices(invoices, opts) {
		key := keys[number]
		e, ok := enhancedByInvoice[number]

		// An invoice the pipeline lost entirely fails every check.
		processedKey := ""
		total, benchAvg, variance := math.NaN(), math.NaN(), math.NaN()
		if ok {
			processedKey = e.BenchmarkKey
			total = e.InvoiceTotalPayment
			benchAvg = e.BenchmarkAvgPayment
			variance = e.RevenueVarianceBenchDollar
		}

		record(model.SampleCheckRow{
			BenchmarkKey:   key,
			InvoiceNumber:  number,
			Check:          "Benchmark_Key",
			ProcessedValue: processedKey,
			RecalcValue:    key,
			Delta:          math.NaN(),
			Match:          processedKey == key,
		})

		totalRecalc := invoices[number].payment
		benchRecalc := benchSum[key] / float64(benchN[key])
		numeric(key, number, "Invoice_Total_Payment", total, totalRecalc, tolInvoiceTotal)
		numeric(key, number, "Benchmark_Avg_Payment", benchAvg, benchRecalc, tolBenchmarkAvg)
		numeric(key, number, "Revenue_Variance_$_Against_Benchmark",
			variance, totalRecalc-benchRecalc, tolVariance)

		if _, done := checkedKeys[key]; !done {
			checkedKeys[key] = struct{}{}
			rate, found := weeklyRateByKey[key]
			if !found {
				// A re-derived key absent from the weekly model is
				// itself a drift finding.
				rate = math.NaN()
			}
			numeric(key, number, "Expected_Amount_85_EM_invoice_level",
				rate, expSum[key]/float64(expN[key]), tolExpectedRate)
		}
	}

	res.Summary = summarizeChecks(res.Details)
	return &res, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sampleInvoices(invoices map[string]*rawInvoice, opts SampleOptions) []string {
	numbers := make([]string, 0, len(invoices))
	for number := range invoices {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	n := opts.Size
	if n > len(numbers) {
		n = len(numbers)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	picked := make([]string, 0, n)
	for _, i := range rng.Perm(len(numbers))[:n] {
		picked = append(picked, numbers[i])
	}
	sort.Strings(picked)
	return picked
}

func summarizeChecks(details []model.SampleCheckRow) []model.SampleSummaryRow {
	type acc struct {
		total, pass int
	}
	byCheck := make(map[string]*acc)
	var order []string
	for _, d := range details {
		a := byCheck[d.Check]
		if a == nil {
			a = &acc{}
			byCheck[d.Check] = a
			order = append(order, d.Check)
		}
		a.total++
		if d.Match {
			a.pass++
		}
	}

	out := make([]model.SampleSummaryRow, 0, len(order))
	for _, check := range order {
		a := byCheck[check]
		out = append(out, model.SampleSummaryRow{
			Check:    check,
			Total:    a.total,
			Pass:     a.pass,
			Fail:     a.total - a.pass,
			PassRate: float64(a.pass) / float64(a.total),
		})
	}
	return out
}

// ValidateSampleFile re-reads the raw export named by the glob, audits the
// enhanced and granular artifacts against it, and writes the three
// sample-validation CSVs.
func ValidateSampleFile(sourceGlob string, arts Artifacts, opts SampleOptions) (*SampleResult, error) {
	log := zap.L().With(zap.String("stage", "validate_sample"))

	path, err := fileio.DiscoverLatest(sourceGlob)
	if err != nil {
		return nil, err
	}
	raw, err := fileio.ReadTable(path)
	if err != nil {
		return nil, err
	}

	enhanced, err := fileio.ReadCSV[model.EnhancedRow](arts.Enhanced())
	if err != nil {
		return nil, err
	}
	weekly, err := fileio.ReadCSV[model.WeeklyRow](arts.WeeklyGranular())
	if err != nil {
		return nil, err
	}

	res, err := ValidateSample(raw, enhanced, weekly, opts)
	if err != nil {
		return nil, err
	}
	if err := fileio.WriteCSV(arts.SampleDetails(), res.Details); err != nil {
		return nil, err
	}
	if err := fileio.WriteCSV(arts.SampleSummary(), res.Summary); err != nil {
		return nil, err
	}
	if err := fileio.WriteCSV(arts.SampleMismatches(), res.Mismatches); err != nil {
		return nil, err
	}

	log.Info("sample validation complete",
		zap.String("source", path),
		zap.Int("checks", len(res.Details)),
		zap.Int("mismatches", len(res.Mismatches)),
	)
	return res, nil
}
