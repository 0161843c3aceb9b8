package pipeline

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-rcm/revperf/internal/fileio"
	"github.com/meridian-rcm/revperf/internal/model"
	"github.com/meridian-rcm/revperf/internal/parse"
)

// renameMap standardizes the raw export's report-writer headers. Cleaned
// files already carry the canonical names, so reruns are a no-op.
var renameMap = map[string]string{
	model.RawColYear:    "Year",
	model.RawColWeek:    "Week",
	model.RawColPayer:   "Payer",
	model.RawColGroupEM: "Group_EM",
	model.RawColGroup2:  "Group_EM2",
	model.RawColInvoice: "Invoice_Number",
}

// requiredSourceColumns must be present (post-rename) or the stage aborts.
var requiredSourceColumns = []string{
	"Year", "Week", "Payer", "Group_EM", "Group_EM2", "Invoice_Number",
	"Charge CPT Code", "Charge Amount", "Payment Amount*", "Expected Amount (85% E/M)",
}

// E/M groups for which the charge E/M weight is meaningful; outside these
// the export carries junk weights that must be reset.
var emWeightGroups = map[string]struct{}{
	"Existing E/M Code": {},
	"New E/M Code":      {},
}

var totalRowRE = regexp.MustCompile(`(?i)^\s*(grand\s+total|total)\s*$`)

// PreprocessResult is the cleaned invoice table plus the quarantine sidecar.
type PreprocessResult struct {
	Rows          []model.InvoiceRow
	Header        []string   // source header, for the sidecar
	Quarantined   [][]string // raw rows failing required-field validation
	TotalsRemoved int
}

// Preprocess cleans a raw export: renames columns, forward-fills block
// metadata, coerces numerics (blank means zero at this stage), quarantines
// rows missing identity fields, and derives CPT sets and benchmark keys.
// A single bad row never aborts the stage; it is isolated and reported.
func Preprocess(t *fileio.Table) (*PreprocessResult, error) {
	cols, err := resolveColumns(t.Header)
	if err != nil {
		return nil, err
	}

	res := &PreprocessResult{Header: t.Header}

	// Forward-fill state for block-formatted exports where grouping
	// metadata repeats only on the first row of a block.
	ffillCols := []string{"Year", "Week", "Payer", "Group_EM", "Group_EM2", "Invoice_Number"}
	carry := make(map[string]string, len(ffillCols))

	var kept []model.InvoiceRow

	for _, raw := range t.Rows {
		cell := func(name string) string {
			return strings.TrimSpace(t.Cell(raw, cols[name]))
		}

		// Forward fill before anything else so validation sees the
		// carried values.
		filled := make(map[string]string, len(ffillCols))
		for _, c := range ffillCols {
			v := cell(c)
			if v == "" {
				v = carry[c]
			} else {
				carry[c] = v
			}
			filled[c] = v
		}

		// Summary rows from the report writer are not invoices.
		if totalRowRE.MatchString(filled["Year"]) || totalRowRE.MatchString(filled["Payer"]) ||
			totalRowRE.MatchString(filled["Invoice_Number"]) || totalRowRE.MatchString(cell("Charge CPT Code")) {
			res.TotalsRemoved++
			continue
		}

		row := model.InvoiceRow{
			Year:          parse.Int(strings.TrimSuffix(filled["Year"], ".0")),
			Week:          parse.Int(filled["Week"]),
			Payer:         filled["Payer"],
			GroupEM:       filled["Group_EM"],
			GroupEM2:      filled["Group_EM2"],
			InvoiceNumber: filled["Invoice_Number"],
			CPTCode:       cell("Charge CPT Code"),

			ChargeAmount:        parse.FloatOr(cell("Charge Amount"), 0),
			PaymentAmount:       parse.FloatOr(cell("Payment Amount*"), 0),
			Expected85EM:        parse.FloatOr(cell("Expected Amount (85% E/M)"), 0),
			FeeScheduleExpected: parse.FloatOr(cell("Fee Schedule Expected Amount"), 0),

			ChargeBilledBalance:    parse.FloatOr(cell("Charge Billed Balance"), 0),
			SPChargeBilledBalance:  parse.FloatOr(cell("SP Charge Billed Balance"), 0),
			InsuranceBilledBalance: parse.FloatOr(cell("Insurance Charge Billed Balance"), 0),
			PaymentPerVisit:        parse.FloatOr(cell("Payment per Visit"), 0),
			NRVZeroBalance:         parse.FloatOr(cell("NRV Zero Balance*"), 0),
			ZeroBalanceCollRate:    parse.FloatOr(cell("Zero Balance Collection Rate"), 0),
			CollectionRate:         parse.FloatOr(cell("Collection Rate*"), 0),
			ZeroBalanceCollCharges: parse.FloatOr(cell("Zero Balance - Collection * Charges"), 0),
			AvgChargeEMWeight:      parse.FloatOr(cell("Avg. Charge E/M Weight"), 0),
			LabsPerVisit:           parse.FloatOr(labCell(t, raw, cols), 0),
			ProcedurePerVisit:      parse.FloatOr(cell("Procedure per Visit"), 0),
			RadiologyCount:         parse.FloatOr(cell("Radiology Count"), 0),
			DenialPct:              parse.FloatOr(cell("Denial %"), 0),
			NRVGapDollar:           parse.FloatOr(cell("NRV Gap ($)"), 0),
			NRVGapPct:              parse.FloatOr(cell("NRV Gap (%)"), 0),
			NRVGapSumDollar:        parse.FloatOr(cell("NRV Gap Sum ($)"), 0),
			OpenInvoiceCount:       parse.FloatOr(cell("Open Invoice Count"), 0),
		}

		// Required-field validation: quarantine, never abort.
		if row.InvoiceNumber == "" || row.Payer == "" || row.GroupEM == "" ||
			row.GroupEM2 == "" || row.CPTCode == "" {
			res.Quarantined = append(res.Quarantined, raw)
			continue
		}

		applyRowPolicies(&row)
		kept = append(kept, row)
	}

	// Derive the CPT set per invoice, then key every row with it. All rows
	// of an invoice share one CPT set and hence one Benchmark_Key.
	cptsByInvoice := make(map[string][]string)
	for _, k := range kept {
		cptsByInvoice[k.InvoiceNumber] = append(cptsByInvoice[k.InvoiceNumber], k.CPTCode)
	}
	listByInvoice := make(map[string]string, len(cptsByInvoice))
	for inv, cpts := range cptsByInvoice {
		listByInvoice[inv] = model.FormatCPTList(cpts)
	}

	res.Rows = make([]model.InvoiceRow, 0, len(kept))
	for _, row := range kept {
		row.CPTListStr = listByInvoice[row.InvoiceNumber]
		row.BenchmarkKey = model.BenchmarkKey(row.Payer, row.GroupEM, row.GroupEM2, row.CPTListStr)
		row.AbbrevKey = model.AbbrevBenchmarkKey(row.InvoiceNumber, row.Payer, row.GroupEM, row.GroupEM2, row.CPTListStr)
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

// applyRowPolicies applies the zero-payment and degenerate-metric rules.
func applyRowPolicies(row *model.InvoiceRow) {
	// Zero-payment invoices: collection metrics are zeroed rather than
	// left as computed-from-zero artifacts, and the uncollected charge
	// balance is carried whole.
	if row.PaymentAmount == 0 {
		row.PaymentPerVisit = 0
		row.NRVZeroBalance = 0
		row.ZeroBalanceCollRate = 0
		row.CollectionRate = 0
		row.ZeroBalanceCollCharges = row.ChargeBilledBalance
	}

	// "No charges" is zero, not undefined.
	row.RemainingChargesPct = ratioOrZero(row.ChargeBilledBalance, row.ChargeAmount)

	if _, ok := emWeightGroups[row.GroupEM]; !ok {
		row.AvgChargeEMWeight = 0
	}
}

// resolveColumns maps canonical column names to header indexes, applying the
// rename map and skipping unnamed filler columns. Missing required columns
// abort with the explicit list.
func resolveColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		name := h
		if canonical, ok := renameMap[h]; ok {
			name = canonical
		}
		if _, exists := cols[name]; !exists {
			cols[name] = i
		}
	}
	var missing []string
	for _, req := range requiredSourceColumns {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("preprocess: source missing required columns: %s", strings.Join(missing, ", "))
	}
	// Optional columns resolve to -1 so Cell returns blank.
	for _, opt := range []string{
		"Fee Schedule Expected Amount", "Charge Billed Balance", "SP Charge Billed Balance",
		"Insurance Charge Billed Balance", "Payment per Visit", "NRV Zero Balance*",
		"Zero Balance Collection Rate", "Collection Rate*", "Zero Balance - Collection * Charges",
		"Avg. Charge E/M Weight", "Lab per Visit", "Procedure per Visit", "Radiology Count",
		"Denial %", "NRV Gap ($)", "NRV Gap (%)", "NRV Gap Sum ($)", "Open Invoice Count",
	} {
		if _, ok := cols[opt]; !ok {
			cols[opt] = -1
		}
	}
	return cols, nil
}

// labCell prefers "Lab per Visit" but falls back to the export's duplicated
// "(copy)" variant.
func labCell(t *fileio.Table, row []string, cols map[string]int) string {
	if v := strings.TrimSpace(t.Cell(row, cols["Lab per Visit"])); v != "" {
		return v
	}
	if i := t.Col("Lab per Visit (copy)"); i >= 0 {
		return strings.TrimSpace(t.Cell(row, i))
	}
	return ""
}

// PreprocessFile discovers the newest raw export matching the glob, cleans
// it, and writes the cleaned CSV plus the validation-report sidecar.
func PreprocessFile(sourceGlob string, arts Artifacts) (*PreprocessResult, error) {
	log := zap.L().With(zap.String("stage", "preprocess"))

	path, err := fileio.DiscoverLatest(sourceGlob)
	if err != nil {
		return nil, err
	}
	log.Info("using source file", zap.String("path", path))

	t, err := fileio.ReadTable(path)
	if err != nil {
		return nil, err
	}

	res, err := Preprocess(t)
	if err != nil {
		return nil, err
	}

	if err := fileio.WriteCSV(arts.Cleaned(), res.Rows); err != nil {
		return nil, err
	}
	if err := fileio.WriteTable(arts.ValidationReport(), res.Header, res.Quarantined); err != nil {
		return nil, err
	}

	log.Info("preprocess complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("quarantined", len(res.Quarantined)),
		zap.Int("totals_removed", res.TotalsRemoved),
	)
	return res, nil
}
