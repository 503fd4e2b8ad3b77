// Package anomaly scores expenses for unusualness with an isolation
// forest over the numeric feature space, backed by per-group statistical
// baselines that attribute each flag to the dimension that drove it.
package anomaly

import (
	"math"
	"math/rand"
)

// treeNode is one node of an isolation tree. Leaves record only their
// population size.
type treeNode struct {
	Feature int       `json:"f,omitempty"`
	Split   float64   `json:"v,omitempty"`
	Size    int       `json:"n"`
	Leaf    bool      `json:"leaf,omitempty"`
	Left    *treeNode `json:"l,omitempty"`
	Right   *treeNode `json:"r,omitempty"`
}

// isolationForest holds an ensemble of randomly split trees. Points that
// isolate in short paths are anomalous.
type isolationForest struct {
	Trees     []*treeNode `json:"trees"`
	Subsample int         `json:"subsample"`
}

// buildForest grows the ensemble from seeded randomness, so fitting the
// same data with the same seed reproduces the same forest.
func buildForest(data [][]float64, trees, subsample int, rng *rand.Rand) *isolationForest {
	if subsample > len(data) {
		subsample = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(subsample)))) + 1

	f := &isolationForest{Subsample: subsample}
	for t := 0; t < trees; t++ {
		perm := rng.Perm(len(data))
		sample := make([][]float64, subsample)
		for i := 0; i < subsample; i++ {
			sample[i] = data[perm[i]]
		}
		f.Trees = append(f.Trees, buildTree(sample, 0, maxDepth, rng))
	}
	return f
}

func buildTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if depth >= maxDepth || len(data) <= 1 {
		return &treeNode{Size: len(data), Leaf: true}
	}

	width := len(data[0])
	feat := rng.Intn(width)
	min, max := data[0][feat], data[0][feat]
	for _, row := range data[1:] {
		if row[feat] < min {
			min = row[feat]
		}
		if row[feat] > max {
			max = row[feat]
		}
	}
	if min == max {
		// Try the other dimensions before giving up on this node
		feat = -1
		for d := 0; d < width; d++ {
			lo, hi := data[0][d], data[0][d]
			for _, row := range data[1:] {
				if row[d] < lo {
					lo = row[d]
				}
				if row[d] > hi {
					hi = row[d]
				}
			}
			if lo != hi {
				feat, min, max = d, lo, hi
				break
			}
		}
		if feat < 0 {
			return &treeNode{Size: len(data), Leaf: true}
		}
	}

	split := min + rng.Float64()*(max-min)
	var left, right [][]float64
	for _, row := range data {
		if row[feat] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{Size: len(data), Leaf: true}
	}

	return &treeNode{
		Feature: feat,
		Split:   split,
		Size:    len(data),
		Left:    buildTree(left, depth+1, maxDepth, rng),
		Right:   buildTree(right, depth+1, maxDepth, rng),
	}
}

// score returns the normalized isolation score 2^(-E[h(x)]/c(n)) in
// (0,1]. Higher means more isolated.
func (f *isolationForest) score(point []float64) float64 {
	if len(f.Trees) == 0 {
		return 0.5
	}
	var total float64
	for _, root := range f.Trees {
		total += pathLength(root, point, 0)
	}
	avg := total / float64(len(f.Trees))

	c := avgPathLength(f.Subsample)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

func pathLength(node *treeNode, point []float64, depth int) float64 {
	if node.Leaf {
		return float64(depth) + avgPathLength(node.Size)
	}
	if point[node.Feature] < node.Split {
		return pathLength(node.Left, point, depth+1)
	}
	return pathLength(node.Right, point, depth+1)
}

// eulerGamma is the Euler-Mascheroni constant used in the average BST
// path length estimate.
const eulerGamma = 0.5772156649

// avgPathLength is c(n), the average unsuccessful-search path length in
// a binary search tree of n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
