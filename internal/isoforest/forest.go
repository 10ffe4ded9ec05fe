// Package isoforest implements a small isolation forest for unsupervised
// outlier scoring over dense float feature matrices. Scores follow the
// standard formulation: points isolated in fewer random splits receive
// scores closer to 1.
package isoforest

import (
	"fmt"
	"math"
	"math/rand"
)

// Options configures a Forest. Zero values fall back to the defaults of
// DefaultOptions.
type Options struct {
	// Trees is the ensemble size.
	Trees int
	// SampleSize is the per-tree subsample size; samples are drawn without
	// replacement, capped at the dataset size.
	SampleSize int
	// Seed fixes the random source so repeated fits over the same data
	// produce identical scores.
	Seed int64
}

// DefaultOptions returns the conventional ensemble parameters: 100 trees
// over subsamples of 256.
func DefaultOptions() Options {
	return Options{Trees: 100, SampleSize: 256, Seed: 1}
}

type node struct {
	left, right *node
	feature     int
	split       float64
	size        int
}

// Forest is a fitted isolation forest. Fit once, then Score any point with
// the same feature dimensionality.
type Forest struct {
	trees      []*node
	sampleSize int
	features   int
}

// Fit builds an isolation forest over data, a row-major matrix where every
// row has the same length. Fit fails on empty input or ragged rows.
func Fit(data [][]float64, opts Options) (*Forest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot fit on empty dataset")
	}
	features := len(data[0])
	if features == 0 {
		return nil, fmt.Errorf("cannot fit on zero-feature dataset")
	}
	for i, row := range data {
		if len(row) != features {
			return nil, fmt.Errorf("ragged row %d: expected %d features, got %d", i, features, len(row))
		}
	}

	if opts.Trees <= 0 {
		opts.Trees = DefaultOptions().Trees
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultOptions().SampleSize
	}
	sampleSize := opts.SampleSize
	if sampleSize > len(data) {
		sampleSize = len(data)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))
	if maxDepth < 1 {
		maxDepth = 1
	}

	forest := &Forest{
		trees:      make([]*node, opts.Trees),
		sampleSize: sampleSize,
		features:   features,
	}
	for t := 0; t < opts.Trees; t++ {
		sample := subsample(data, sampleSize, rng)
		forest.trees[t] = buildTree(sample, 0, maxDepth, rng)
	}
	return forest, nil
}

// Score returns the anomaly score of point in [0, 1]. Scores near 1 mark
// points the ensemble isolates quickly; scores well below 0.5 mark points
// deep inside the bulk of the data.
func (f *Forest) Score(point []float64) (float64, error) {
	if len(point) != f.features {
		return 0, fmt.Errorf("expected %d features, got %d", f.features, len(point))
	}

	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, point, 0)
	}
	avg := total / float64(len(f.trees))

	norm := averagePathLength(f.sampleSize)
	if norm == 0 {
		return 0.5, nil
	}
	return math.Pow(2, -avg/norm), nil
}

// ScoreAll scores every row of data.
func (f *Forest) ScoreAll(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))
	for i, row := range data {
		s, err := f.Score(row)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}

func subsample(data [][]float64, size int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(data))
	sample := make([][]float64, size)
	for i := 0; i < size; i++ {
		sample[i] = data[perm[i]]
	}
	return sample
}

func buildTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *node {
	if len(data) <= 1 || depth >= maxDepth {
		return &node{size: len(data)}
	}

	feature := rng.Intn(len(data[0]))
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	if lo == hi {
		return &node{size: len(data)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &node{
		feature: feature,
		split:   split,
		left:    buildTree(left, depth+1, maxDepth, rng),
		right:   buildTree(right, depth+1, maxDepth, rng),
	}
}

func pathLength(n *node, point []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + averagePathLength(n.size)
	}
	if point[n.feature] < n.split {
		return pathLength(n.left, point, depth+1)
	}
	return pathLength(n.right, point, depth+1)
}

const eulerMascheroni = 0.5772156649

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		h := math.Log(float64(n-1)) + eulerMascheroni
		return 2*h - 2*float64(n-1)/float64(n)
	}
}
