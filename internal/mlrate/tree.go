package mlrate

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// treeNode is one node of a regression tree. Leaves predict the mean target
// of their training rows; internal nodes split on feature <= threshold.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

const defaultTreeDepth = 8

// candidate split points per feature: quantile cuts keep the search cheap
// and deterministic on large buckets.
const splitQuantiles = 16

type treeParams struct {
	maxDepth int
	minLeaf  int
}

func buildTree(x [][]float64, y []float64, idx []int, depth int, p treeParams) *treeNode {
	leafValue := func() *treeNode {
		sub := make([]float64, len(idx))
		for i, r := range idx {
			sub[i] = y[r]
		}
		return &treeNode{leaf: true, value: stat.Mean(sub, nil)}
	}

	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return leafValue()
	}

	feature, threshold, gain := bestSplit(x, y, idx, p.minLeaf)
	if gain <= 0 {
		return leafValue()
	}

	var leftIdx, rightIdx []int
	for _, r := range idx {
		if x[r][feature] <= threshold {
			leftIdx = append(leftIdx, r)
		} else {
			rightIdx = append(rightIdx, r)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(x, y, leftIdx, depth+1, p),
		right:     buildTree(x, y, rightIdx, depth+1, p),
	}
}

// bestSplit scans quantile thresholds of every feature for the split with
// the largest sum-of-squares reduction that leaves minLeaf rows on each side.
func bestSplit(x [][]float64, y []float64, idx []int, minLeaf int) (int, float64, float64) {
	parentSSE := sse(y, idx)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	for f := range x[idx[0]] {
		for _, threshold := range thresholds(x, idx, f) {
			var leftN, rightN int
			var leftSum, rightSum, leftSq, rightSq float64
			for _, r := range idx {
				v := y[r]
				if x[r][f] <= threshold {
					leftN++
					leftSum += v
					leftSq += v * v
				} else {
					rightN++
					rightSum += v
					rightSq += v * v
				}
			}
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}
			childSSE := leftSq - leftSum*leftSum/float64(leftN) +
				rightSq - rightSum*rightSum/float64(rightN)
			if gain := parentSSE - childSSE; gain > bestGain {
				bestFeature, bestThreshold, bestGain = f, threshold, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func thresholds(x [][]float64, idx []int, feature int) []float64 {
	vals := make([]float64, 0, len(idx))
	for _, r := range idx {
		vals = append(vals, x[r][feature])
	}
	sort.Float64s(vals)

	uniq := vals[:0]
	for i, v := range vals {
		if i == 0 || v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) < 2 {
		return nil
	}
	if len(uniq) <= splitQuantiles {
		cuts := make([]float64, 0, len(uniq)-1)
		for i := 0; i < len(uniq)-1; i++ {
			cuts = append(cuts, (uniq[i]+uniq[i+1])/2)
		}
		return cuts
	}

	cuts := make([]float64, 0, splitQuantiles)
	for q := 1; q <= splitQuantiles; q++ {
		i := q * (len(uniq) - 1) / (splitQuantiles + 1)
		cuts = append(cuts, (uniq[i]+uniq[i+1])/2)
	}
	return cuts
}

func sse(y []float64, idx []int) float64 {
	var sum, sq float64
	for _, r := range idx {
		sum += y[r]
		sq += y[r] * y[r]
	}
	return sq - sum*sum/float64(len(idx))
}

func (t *treeNode) predict(x []float64) float64 {
	n := t
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}
