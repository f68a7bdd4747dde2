package banksy

import (
	"fmt"
	"sort"
)

// DefaultSNNPrune is the default shared-neighbor overlap below which edges
// are dropped from the graph.
const DefaultSNNPrune = 1.0 / 15

// SNNGraph is a weighted undirected shared-nearest-neighbor graph over an
// embedding, stored as CSR adjacency. Two cells are connected when either
// lists the other among its k nearest neighbors, and the edge weight is
// the Jaccard overlap of their neighbor sets (each set including the cell
// itself). Edges with overlap below the prune threshold are dropped.
type SNNGraph struct {
	n       int
	indptr  []int
	indices []int
	weights []float64
	// totalWeight is the sum of adjacency weights over both directions
	// (2m in modularity terms).
	totalWeight float64
	embedding   *Matrix
}

// Cells returns the number of cells (graph vertices).
func (g *SNNGraph) Cells() int { return g.n }

// NumEdges returns the number of undirected edges.
func (g *SNNGraph) NumEdges() int { return len(g.indices) / 2 }

// Embedding returns the embedding the graph was built over. Centroid and
// mixture clusterers read it; community clusterers only use the adjacency.
func (g *SNNGraph) Embedding() *Matrix { return g.embedding }

// neighbors returns cell i's adjacency as slices aliasing the CSR storage.
func (g *SNNGraph) neighbors(i int) ([]int, []float64) {
	return g.indices[g.indptr[i]:g.indptr[i+1]], g.weights[g.indptr[i]:g.indptr[i+1]]
}

// BuildSNNGraph constructs the shared-nearest-neighbor graph for an
// embedding (cells × dims). kNeighbors is clamped to the available cell
// count; prune <= 0 uses [DefaultSNNPrune]. Deterministic for identical
// inputs.
func BuildSNNGraph(embedding *Matrix, kNeighbors int, prune float64, workers int) (*SNNGraph, error) {
	if embedding == nil || embedding.Rows == 0 {
		return nil, fmt.Errorf("banksy: embedding must be non-empty")
	}
	if kNeighbors <= 0 {
		return nil, fmt.Errorf("banksy: kNeighbors must be positive, got %d", kNeighbors)
	}
	if prune <= 0 {
		prune = DefaultSNNPrune
	}

	n := embedding.Rows
	k := kNeighbors
	if k > n-1 {
		k = n - 1
	}
	g := &SNNGraph{n: n, indptr: make([]int, n+1), embedding: embedding}
	if k == 0 {
		return g, nil
	}

	// Sorted neighbor sets, each including the cell itself.
	sets := make([][]int, n)
	tree := newKDTree(embedding.Data, n, embedding.Cols)
	parallelRows(n, workers, func(start, end int) {
		for i := start; i < end; i++ {
			idx, _ := tree.query(embedding.Row(i), k, i)
			s := make([]int, 0, len(idx)+1)
			s = append(s, idx...)
			s = append(s, i)
			sort.Ints(s)
			sets[i] = s
		}
	})

	// Candidate pairs: every directed kNN relation, deduplicated.
	pairs := make([]uint64, 0, n*k)
	for i := 0; i < n; i++ {
		for _, j := range sets[i] {
			if j == i {
				continue
			}
			a, b := i, j
			if a > b {
				a, b = b, a
			}
			pairs = append(pairs, uint64(a)<<32|uint64(b))
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })

	type edge struct {
		a, b int
		w    float64
	}
	var edges []edge
	var prev uint64
	for i, p := range pairs {
		if i > 0 && p == prev {
			continue
		}
		prev = p
		a := int(p >> 32)
		b := int(p & 0xffffffff)
		shared := sortedIntersection(sets[a], sets[b])
		union := len(sets[a]) + len(sets[b]) - shared
		if union == 0 {
			continue
		}
		w := float64(shared) / float64(union)
		if w >= prune {
			edges = append(edges, edge{a: a, b: b, w: w})
		}
	}

	// CSR over both directions.
	deg := make([]int, n)
	for _, e := range edges {
		deg[e.a]++
		deg[e.b]++
	}
	for i := 0; i < n; i++ {
		g.indptr[i+1] = g.indptr[i] + deg[i]
	}
	g.indices = make([]int, g.indptr[n])
	g.weights = make([]float64, g.indptr[n])
	fill := make([]int, n)
	copy(fill, g.indptr[:n])
	for _, e := range edges {
		g.indices[fill[e.a]] = e.b
		g.weights[fill[e.a]] = e.w
		fill[e.a]++
		g.indices[fill[e.b]] = e.a
		g.weights[fill[e.b]] = e.w
		fill[e.b]++
		g.totalWeight += 2 * e.w
	}
	return g, nil
}

// sortedIntersection counts common elements of two ascending int slices.
func sortedIntersection(a, b []int) int {
	var count, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			count++
			i++
			j++
		}
	}
	return count
}
