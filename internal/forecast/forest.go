package forecast

import (
	"math/rand"
)

// forest is a bagged ensemble of regression trees. Training is
// deterministic for a fixed seed: trees are grown sequentially, each
// from its own derived random source.
type forest struct {
	trees []*treeNode
}

type forestParams struct {
	trees           int
	seed            int64
	minSamplesSplit int
	maxDepth        int
}

// fitForest trains the ensemble on (x, y) pairs. Each tree sees a
// bootstrap sample of the rows and a random feature subset per node
// (p/3 features, the usual heuristic for regression forests).
func fitForest(x [][]float64, y []float64, params forestParams) *forest {
	maxFeatures := len(x[0]) / 3
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	tp := treeParams{
		minSamplesSplit: params.minSamplesSplit,
		maxDepth:        params.maxDepth,
		maxFeatures:     maxFeatures,
	}

	f := &forest{trees: make([]*treeNode, 0, params.trees)}
	for t := 0; t < params.trees; t++ {
		rng := rand.New(rand.NewSource(params.seed + int64(t)*7919))

		rows := make([]int, len(x))
		for i := range rows {
			rows[i] = rng.Intn(len(x))
		}

		f.trees = append(f.trees, buildTree(x, y, rows, 0, tp, rng))
	}
	return f
}

// predict averages the per-tree predictions. Read-only: safe for
// concurrent callers once the forest is built.
func (f *forest) predict(values []float64) float64 {
	var sum float64
	for _, tree := range f.trees {
		sum += tree.predict(values)
	}
	return sum / float64(len(f.trees))
}
