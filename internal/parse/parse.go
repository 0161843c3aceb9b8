// Package parse converts dirty tabular cell values into numbers.
//
// Exports from practice-management systems arrive with percent suffixes,
// comma thousands separators, stray whitespace, and blank cells. Float maps
// all of those to a float64 without ever returning an error; unparseable
// input becomes NaN and flows through downstream arithmetic until a
// classification step decides what NaN means.
//
// Truth table for Float:
//
//	""            -> NaN
//	"  "          -> NaN
//	"12.5"        -> 12.5
//	"1,234.50"    -> 1234.5
//	"45%"         -> 0.45
//	"1,200%"      -> 12.0
//	"$1,200.00"   -> 1200.0
//	"(350.00)"    -> -350.0
//	"NaN"         -> NaN
//	"garbage"     -> NaN
package parse

import (
	"math"
	"strconv"
	"strings"
)

// Float parses a cell value permissively. It never fails; anything that
// cannot be read as a number comes back as NaN.
func Float(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}

	// Accounting negatives: (350.00) means -350.00.
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")

	pct := false
	if strings.HasSuffix(s, "%") {
		pct = true
		s = strings.TrimSuffix(s, "%")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	if pct {
		v /= 100
	}
	if neg {
		v = -v
	}
	return v
}

// FloatOr parses like Float but substitutes def for NaN. Used where the
// schema calls for blank-means-zero (currency and count columns in the raw
// export).
func FloatOr(s string, def float64) float64 {
	v := Float(s)
	if math.IsNaN(v) {
		return def
	}
	return v
}

// Int parses an integer out of a cell, tolerating float formatting
// ("2024.0") and embedded text ("Week 14"). Unparseable input yields 0.
func Int(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f := Float(s); !math.IsNaN(f) {
		return int(f)
	}
	// Last resort: first digit run ("ISO Week of Visit Service Date" cells
	// sometimes read "Week 14").
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			n, _ := strconv.Atoi(s[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(s[start:])
		return n
	}
	return 0
}

// Normalize rewrites a cell into a form strconv can read directly: the
// canonical decimal string, or "NaN" when the cell is blank or garbage.
// Wired as the csvutil decode hook for float fields.
func Normalize(s string) string {
	v := Float(s)
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
