package forecast

import (
	"math/rand"
	"sort"
)

// treeNode is a node of a CART regression tree. Leaves carry the mean
// target of the training rows that reached them.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

type treeParams struct {
	minSamplesSplit int
	maxDepth        int
	maxFeatures     int
}

// buildTree grows a regression tree on the given row indices using
// variance-reduction splits over a random feature subset per node.
func buildTree(x [][]float64, y []float64, rows []int, depth int, params treeParams, rng *rand.Rand) *treeNode {
	if len(rows) < params.minSamplesSplit || depth >= params.maxDepth {
		return &treeNode{leaf: true, value: meanOf(y, rows)}
	}

	feature, threshold, ok := bestSplit(x, y, rows, params.maxFeatures, rng)
	if !ok {
		return &treeNode{leaf: true, value: meanOf(y, rows)}
	}

	var left, right []int
	for _, r := range rows {
		if x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{leaf: true, value: meanOf(y, rows)}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(x, y, left, depth+1, params, rng),
		right:     buildTree(x, y, right, depth+1, params, rng),
	}
}

// bestSplit scans a random subset of features for the split that
// minimizes the summed squared error of the two children. Candidate
// thresholds are midpoints between adjacent distinct feature values,
// evaluated in one pass over prefix sums.
func bestSplit(x [][]float64, y []float64, rows []int, maxFeatures int, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(x[rows[0]])
	candidates := rng.Perm(numFeatures)[:maxFeatures]
	// Deterministic evaluation order regardless of permutation layout
	sort.Ints(candidates)

	var (
		bestFeature   = -1
		bestThreshold float64
		bestSSE       = sseOf(y, rows)
		found         bool
	)
	if bestSSE == 0 {
		return 0, 0, false
	}

	order := make([]int, len(rows))
	for _, feature := range candidates {
		copy(order, rows)
		f := feature
		sort.Slice(order, func(i, j int) bool { return x[order[i]][f] < x[order[j]][f] })

		var sumLeft, sqLeft float64
		var sumTotal, sqTotal float64
		for _, r := range order {
			sumTotal += y[r]
			sqTotal += y[r] * y[r]
		}

		n := float64(len(order))
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			sumLeft += y[r]
			sqLeft += y[r] * y[r]

			// Splits only between distinct feature values
			if x[order[i]][f] == x[order[i+1]][f] {
				continue
			}

			nl := float64(i + 1)
			nr := n - nl
			sseLeft := sqLeft - sumLeft*sumLeft/nl
			sumRight := sumTotal - sumLeft
			sseRight := (sqTotal - sqLeft) - sumRight*sumRight/nr

			if sse := sseLeft + sseRight; sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (x[order[i]][f] + x[order[i+1]][f]) / 2
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}

// predict walks the tree for one feature vector
func (n *treeNode) predict(values []float64) float64 {
	node := n
	for !node.leaf {
		if values[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func meanOf(y []float64, rows []int) float64 {
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	return sum / float64(len(rows))
}

func sseOf(y []float64, rows []int) float64 {
	mean := meanOf(y, rows)
	var sse float64
	for _, r := range rows {
		d := y[r] - mean
		sse += d * d
	}
	return sse
}
