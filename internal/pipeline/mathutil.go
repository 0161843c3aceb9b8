package pipeline

import "math"

// meanSkipNaN averages the non-NaN values; all-NaN (or empty) input yields
// NaN. Matches the skip-missing mean semantics the aggregations rely on.
func meanSkipNaN(vals []float64) float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// sumSkipNaN sums the non-NaN values; empty input yields 0.
func sumSkipNaN(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sum += v
	}
	return sum
}

// ratio divides a by b, yielding NaN on a zero denominator. Degenerate
// aggregations propagate NaN until a classification step maps it to an
// explicit label.
func ratio(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return a / b
}

// ratioOrZero divides a by b, yielding 0 on a zero denominator. Reserved for
// the cases where the design says "no denominator" means zero rather than
// undefined (percent of remaining charges, variance against a zero
// expectation).
func ratioOrZero(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// negOnly keeps shortfalls: negative values pass through, everything else
// (including NaN) becomes 0.
func negOnly(v float64) float64 {
	if !math.IsNaN(v) && v < 0 {
		return v
	}
	return 0
}

// posOnly keeps positive values; everything else becomes 0.
func posOnly(v float64) float64 {
	if !math.IsNaN(v) && v > 0 {
		return v
	}
	return 0
}
