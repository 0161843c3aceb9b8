package mlrate

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// elasticNet is a linear model with combined L1/L2 regularization, fit by
// cyclic coordinate descent on standardized features.
type elasticNet struct {
	weights   []float64
	intercept float64
	means     []float64
	scales    []float64
}

type elasticNetParams struct {
	alpha   float64
	l1Ratio float64
	maxIter int
	tol     float64
}

func trainElasticNet(x [][]float64, y []float64, p elasticNetParams) *elasticNet {
	n := len(y)
	if n == 0 {
		return &elasticNet{}
	}
	width := len(x[0])

	m := &elasticNet{
		weights: make([]float64, width),
		means:   make([]float64, width),
		scales:  make([]float64, width),
	}

	// Standardize columns; constant columns scale to 1 so they simply
	// never move the fit.
	z := make([][]float64, n)
	for i := range z {
		z[i] = make([]float64, width)
	}
	col := make([]float64, n)
	for j := 0; j < width; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.means[j] = mean
		m.scales[j] = std
		for i := range z {
			z[i][j] = (col[i] - mean) / std
		}
	}

	yMean := stat.Mean(y, nil)
	r := make([]float64, n) // residuals with current weights
	for i := range r {
		r[i] = y[i] - yMean
	}

	l1 := p.alpha * p.l1Ratio * float64(n)
	l2 := p.alpha * (1 - p.l1Ratio) * float64(n)

	for iter := 0; iter < p.maxIter; iter++ {
		var maxDelta float64
		for j := 0; j < width; j++ {
			var rho, zz float64
			for i := 0; i < n; i++ {
				rho += z[i][j] * (r[i] + m.weights[j]*z[i][j])
				zz += z[i][j] * z[i][j]
			}
			if zz == 0 {
				continue
			}
			w := softThreshold(rho, l1) / (zz + l2)
			if delta := w - m.weights[j]; delta != 0 {
				for i := 0; i < n; i++ {
					r[i] -= delta * z[i][j]
				}
				if d := math.Abs(delta); d > maxDelta {
					maxDelta = d
				}
				m.weights[j] = w
			}
		}
		if maxDelta < p.tol {
			break
		}
	}

	m.intercept = yMean
	return m
}

func softThreshold(v, lambda float64) float64 {
	switch {
	case v > lambda:
		return v - lambda
	case v < -lambda:
		return v + lambda
	default:
		return 0
	}
}

func (m *elasticNet) predict(x []float64) float64 {
	out := m.intercept
	for j, w := range m.weights {
		if w == 0 {
			continue
		}
		out += w * (x[j] - m.means[j]) / m.scales[j]
	}
	return out
}
