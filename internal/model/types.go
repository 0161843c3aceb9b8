// Package model defines the row schemas passed between pipeline stages.
//
// Column names in csv tags are the wire contract: stages validate headers
// against these tags at load time, so renaming a tag is a schema change.
package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/meridian-rcm/revperf/internal/parse"
)

// Percent is a ratio held as a fraction (0.45 == 45%) that round-trips the
// export presentation format: encoded as a whole-percent string ("45%"),
// decoded permissively. NaN encodes as an empty cell.
type Percent float64

// MarshalCSV implements csvutil.Marshaler.
func (p Percent) MarshalCSV() ([]byte, error) {
	f := float64(p)
	if math.IsNaN(f) {
		return []byte(nil), nil
	}
	return []byte(strconv.Itoa(int(math.Round(f*100))) + "%"), nil
}

// UnmarshalCSV implements csvutil.Unmarshaler.
func (p *Percent) UnmarshalCSV(data []byte) error {
	*p = Percent(parse.Float(string(data)))
	return nil
}

// Performance band labels shared by the diagnostics and narrative stages.
const (
	LabelOver    = "Over Performing"
	LabelUnder   = "Under Performing"
	LabelAverage = "Average Performance"
	LabelNoData  = "No Data"
)

// ModelKind tags which regression model produced the ML diagnostic columns.
// Downstream stages match on the tag instead of probing for column presence.
type ModelKind string

const (
	ModelNone       ModelKind = "none"
	ModelHGB        ModelKind = "hgb"
	ModelElasticNet ModelKind = "elasticnet"
)

// FormatCPTList renders a sorted unique CPT set the way the benchmark keys
// carry it: "['99213', '99214']". The format is part of the Benchmark_Key
// contract and must stay byte-stable across runs.
func FormatCPTList(cpts []string) string {
	uniq := make(map[string]struct{}, len(cpts))
	for _, c := range cpts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		uniq[c] = struct{}{}
	}
	list := make([]string, 0, len(uniq))
	for c := range uniq {
		list = append(list, c)
	}
	sort.Strings(list)
	quoted := make([]string, len(list))
	for i, c := range list {
		quoted[i] = "'" + c + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// BenchmarkKey builds the composite grouping key: the class of visit an
// invoice resembles, not just its payer.
func BenchmarkKey(payer, groupEM, groupEM2, cptListStr string) string {
	return payer + "|" + groupEM + "|" + groupEM2 + "|" + cptListStr
}

// AbbrevBenchmarkKey prefixes the benchmark key with the invoice number,
// giving a per-invoice identity that still carries the visit class.
func AbbrevBenchmarkKey(invoice, payer, groupEM, groupEM2, cptListStr string) string {
	return invoice + "|" + BenchmarkKey(payer, groupEM, groupEM2, cptListStr)
}

// CPTCountFromKey counts the CPT codes embedded in a benchmark key.
func CPTCountFromKey(key string) int {
	idx := strings.LastIndex(key, "|")
	if idx < 0 {
		return 0
	}
	return strings.Count(key[idx:], "'") / 2
}

// GroupKey identifies a (Year, Week, Payer, Group_EM, Group_EM2) bucket.
type GroupKey struct {
	Year     int
	Week     int
	Payer    string
	GroupEM  string
	GroupEM2 string
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%d|%d|%s|%s|%s", k.Year, k.Week, k.Payer, k.GroupEM, k.GroupEM2)
}
