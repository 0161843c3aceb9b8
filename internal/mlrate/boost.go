package mlrate

import "gonum.org/v1/gonum/stat"

// regressor is the contract both model kinds satisfy.
type regressor interface {
	predict(x []float64) float64
}

// boosted is a gradient-boosted ensemble of regression trees fit on
// least-squares residuals. Training is deterministic: no subsampling, no
// random feature selection.
type boosted struct {
	base  float64
	lr    float64
	trees []*treeNode
}

type boostParams struct {
	iterations   int
	learningRate float64
	tree         treeParams
}

func trainBoosted(x [][]float64, y []float64, p boostParams) *boosted {
	m := &boosted{base: stat.Mean(y, nil), lr: p.learningRate}

	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}

	residual := make([]float64, len(y))
	for iter := 0; iter < p.iterations; iter++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		t := buildTree(x, residual, idx, 0, p.tree)
		m.trees = append(m.trees, t)

		stalled := true
		for i := range pred {
			step := m.lr * t.predict(x[i])
			pred[i] += step
			if step != 0 {
				stalled = false
			}
		}
		if stalled {
			break
		}
	}
	return m
}

func (m *boosted) predict(x []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.lr * t.predict(x)
	}
	return out
}
