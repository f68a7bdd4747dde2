package banksy

import (
	"container/heap"
	"math"
	"sort"
)

// kdTree is a KD-tree over flat row-major point data, specialized to
// squared-Euclidean pruning. It serves both the coordinate-space neighbor
// search of the feature builder and the embedding-space search of the SNN
// graph construction.
//
// The tree is stored as a complete binary tree in array form: node i has
// children at 2*i+1 and 2*i+2, and per-node axis-aligned bounds are kept
// for pruning.
type kdTree struct {
	points   []float64 // flat row-major (n * dims), tree's own copy
	n        int
	dims     int
	leafSize int
	idx      []int // permutation: tree-order position → original index
	nodes    []kdNode
	// boundsMin[node*dims+d] / boundsMax[node*dims+d] bound feature d
	// over the points under node.
	boundsMin []float64
	boundsMax []float64
}

type kdNode struct {
	start, end int
	leaf       bool
}

const defaultLeafSize = 32

// newKDTree builds a KD-tree from flat row-major data with n points of
// dimensionality dims.
func newKDTree(points []float64, n, dims int) *kdTree {
	own := make([]float64, len(points))
	copy(own, points)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	t := &kdTree{
		points:   own,
		n:        n,
		dims:     dims,
		leafSize: defaultLeafSize,
		idx:      idx,
	}
	maxNodes := t.maxNodes()
	t.nodes = make([]kdNode, maxNodes)
	t.boundsMin = make([]float64, maxNodes*dims)
	t.boundsMax = make([]float64, maxNodes*dims)

	if n > 0 {
		t.build(0, 0, n)
	}
	return t
}

// maxNodes returns an upper bound on the node count for a median-split
// binary tree over n points with the configured leaf size.
func (t *kdTree) maxNodes() int {
	if t.n == 0 {
		return 1
	}
	leaves := (t.n + t.leafSize - 1) / t.leafSize
	depth := 0
	for v := 1; v < leaves; v *= 2 {
		depth++
	}
	return (1 << (depth + 2)) - 1
}

func (t *kdTree) build(node, start, end int) {
	for node >= len(t.nodes) {
		t.nodes = append(t.nodes, kdNode{})
		t.boundsMin = append(t.boundsMin, make([]float64, t.dims)...)
		t.boundsMax = append(t.boundsMax, make([]float64, t.dims)...)
	}

	base := node * t.dims
	for d := 0; d < t.dims; d++ {
		t.boundsMin[base+d] = math.Inf(1)
		t.boundsMax[base+d] = math.Inf(-1)
	}
	for i := start; i < end; i++ {
		p := t.idx[i] * t.dims
		for d := 0; d < t.dims; d++ {
			v := t.points[p+d]
			if v < t.boundsMin[base+d] {
				t.boundsMin[base+d] = v
			}
			if v > t.boundsMax[base+d] {
				t.boundsMax[base+d] = v
			}
		}
	}

	if end-start <= t.leafSize {
		t.nodes[node] = kdNode{start: start, end: end, leaf: true}
		return
	}

	// Split along the widest dimension at the median.
	splitDim := 0
	maxSpread := -1.0
	for d := 0; d < t.dims; d++ {
		if spread := t.boundsMax[base+d] - t.boundsMin[base+d]; spread > maxSpread {
			maxSpread = spread
			splitDim = d
		}
	}

	sub := t.idx[start:end]
	dims, pts := t.dims, t.points
	sort.Slice(sub, func(i, j int) bool {
		a, b := pts[sub[i]*dims+splitDim], pts[sub[j]*dims+splitDim]
		if a != b {
			return a < b
		}
		return sub[i] < sub[j] // stable permutation on ties
	})
	mid := start + (end-start)/2

	t.nodes[node] = kdNode{start: start, end: end}
	t.build(2*node+1, start, mid)
	t.build(2*node+2, mid, end)
}

// minSqDist returns a lower bound on the squared distance between the query
// point and any point under node.
func (t *kdTree) minSqDist(node int, query []float64) float64 {
	if node >= len(t.nodes) {
		return math.Inf(1)
	}
	base := node * t.dims
	var sq float64
	for d := 0; d < t.dims; d++ {
		var gap float64
		if query[d] < t.boundsMin[base+d] {
			gap = t.boundsMin[base+d] - query[d]
		} else if query[d] > t.boundsMax[base+d] {
			gap = query[d] - t.boundsMax[base+d]
		}
		sq += gap * gap
	}
	return sq
}

// query finds the k nearest neighbors of query, excluding the point with
// original index exclude (pass -1 to keep all). Results are sorted by
// ascending distance with ties broken by ascending index.
func (t *kdTree) query(query []float64, k, exclude int) ([]int, []float64) {
	if k <= 0 || t.n == 0 {
		return nil, nil
	}
	h := make(nnHeap, 0, k+1)
	t.search(0, query, k, exclude, &h)

	out := make([]nnItem, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].sqDist != out[j].sqDist {
			return out[i].sqDist < out[j].sqDist
		}
		return out[i].index < out[j].index
	})

	idx := make([]int, len(out))
	dist := make([]float64, len(out))
	for i, it := range out {
		idx[i] = it.index
		dist[i] = math.Sqrt(it.sqDist)
	}
	return idx, dist
}

func (t *kdTree) search(node int, query []float64, k, exclude int, h *nnHeap) {
	if node >= len(t.nodes) {
		return
	}
	nd := t.nodes[node]
	if nd.start == nd.end && node != 0 {
		return
	}

	if nd.leaf {
		for i := nd.start; i < nd.end; i++ {
			pi := t.idx[i]
			if pi == exclude {
				continue
			}
			pt := t.points[pi*t.dims : (pi+1)*t.dims]
			sq := euclideanSumOfSquares(query, pt)
			if h.Len() < k {
				heap.Push(h, nnItem{index: pi, sqDist: sq})
			} else if top := (*h)[0]; sq < top.sqDist || (sq == top.sqDist && pi < top.index) {
				(*h)[0] = nnItem{index: pi, sqDist: sq}
				heap.Fix(h, 0)
			}
		}
		return
	}

	left, right := 2*node+1, 2*node+2
	nearBound := t.minSqDist(left, query)
	farBound := t.minSqDist(right, query)
	near, far := left, right
	if farBound < nearBound {
		near, far = right, left
		farBound = nearBound
	}

	t.search(near, query, k, exclude, h)
	if h.Len() < k || farBound <= (*h)[0].sqDist {
		t.search(far, query, k, exclude, h)
	}
}

// --- bounded max-heap for neighbor queries ---

type nnItem struct {
	index  int
	sqDist float64
}

// nnHeap is a max-heap of nnItem (largest distance on top, ties resolved
// toward the larger index so lower indices win on equal distance).
type nnHeap []nnItem

func (h nnHeap) Len() int { return len(h) }
func (h nnHeap) Less(i, j int) bool {
	if h[i].sqDist != h[j].sqDist {
		return h[i].sqDist > h[j].sqDist
	}
	return h[i].index > h[j].index
}
func (h nnHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nnHeap) Push(x interface{}) { *h = append(*h, x.(nnItem)) }
func (h *nnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
