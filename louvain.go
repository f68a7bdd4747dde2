package banksy

import (
	"fmt"
	"math/rand"
	"sort"
)

// LouvainClusterer partitions the SNN graph by iterative local-move
// optimization of resolution-parameterized modularity, with graph
// aggregation between passes. Higher Resolution yields more, smaller
// communities.
type LouvainClusterer struct {
	// Resolution is the modularity resolution parameter. Must be > 0.
	Resolution float64
	// MaxLevels caps the number of aggregation rounds. 0 means 20.
	MaxLevels int
}

const defaultMaxLevels = 20

// moveEps is the minimum modularity gain for a local move to count as an
// improvement, guarding against float noise driving endless passes.
const moveEps = 1e-12

func (c *LouvainClusterer) Fit(g *SNNGraph, seed int64) (*ClusterResult, error) {
	if c.Resolution <= 0 {
		return nil, fmt.Errorf("banksy: resolution must be > 0, got %g", c.Resolution)
	}
	maxLevels := c.MaxLevels
	if maxLevels == 0 {
		maxLevels = defaultMaxLevels
	}

	n := g.Cells()
	labels := make([]int, n)
	if g.totalWeight == 0 {
		// No edges: everything in one community.
		return &ClusterResult{Labels: labels, NumClusters: min(n, 1)}, nil
	}

	rng := rand.New(rand.NewSource(seed))
	cur := newWGraph(g)
	for i := range labels {
		labels[i] = i
	}

	levels := 0
	for level := 0; level < maxLevels; level++ {
		comm, moved := localMove(cur, c.Resolution, rng, nil)
		nc := relabelContiguous(comm)
		levels++
		if !moved || nc == cur.n {
			for i := range labels {
				labels[i] = comm[labels[i]]
			}
			break
		}
		for i := range labels {
			labels[i] = comm[labels[i]]
		}
		cur = aggregate(cur, comm, nc)
	}

	numClusters := relabelContiguous(labels)
	return &ClusterResult{
		Labels:      labels,
		NumClusters: numClusters,
		Objective:   modularity(newWGraph(g), labels, c.Resolution),
		Iterations:  levels,
	}, nil
}

// wgraph is a weighted undirected graph in CSR form with explicit self-loop
// weights, used by the community-detection modes and their aggregation
// steps. A_ii is selfLoop[i]; strength[i] = selfLoop[i] + sum of incident
// edge weights; total = sum of strengths (2m).
type wgraph struct {
	n        int
	indptr   []int
	indices  []int
	weights  []float64
	selfLoop []float64
	strength []float64
	total    float64
}

func newWGraph(g *SNNGraph) *wgraph {
	w := &wgraph{
		n:        g.n,
		indptr:   g.indptr,
		indices:  g.indices,
		weights:  g.weights,
		selfLoop: make([]float64, g.n),
		strength: make([]float64, g.n),
	}
	for i := 0; i < g.n; i++ {
		var s float64
		for p := g.indptr[i]; p < g.indptr[i+1]; p++ {
			s += g.weights[p]
		}
		w.strength[i] = s
		w.total += s
	}
	return w
}

// localMove runs repeated node sweeps in seeded random order, greedily
// moving each node to the neighboring community with the highest
// modularity gain, until a full sweep makes no move. init, when non-nil,
// seeds the starting community assignment (used by Leiden aggregation);
// otherwise every node starts in its own community. Returns the community
// of each node and whether any move happened.
func localMove(g *wgraph, resolution float64, rng *rand.Rand, init []int) ([]int, bool) {
	comm := make([]int, g.n)
	commTot := make([]float64, g.n)
	if init != nil {
		copy(comm, init)
	} else {
		for i := range comm {
			comm[i] = i
		}
	}
	for i := 0; i < g.n; i++ {
		commTot[comm[i]] += g.strength[i]
	}

	order := rng.Perm(g.n)
	// neighWeight[c] accumulates edge weight from the current node to
	// community c during one node visit.
	neighWeight := make([]float64, g.n)
	touched := make([]int, 0, 64)

	anyMove := false
	for {
		movedInSweep := false
		for _, i := range order {
			ki := g.strength[i]
			old := comm[i]
			commTot[old] -= ki

			touched = touched[:0]
			for p := g.indptr[i]; p < g.indptr[i+1]; p++ {
				j := g.indices[p]
				if j == i {
					continue
				}
				c := comm[j]
				if neighWeight[c] == 0 {
					touched = append(touched, c)
				}
				neighWeight[c] += g.weights[p]
			}

			best := old
			bestGain := neighWeight[old] - resolution*commTot[old]*ki/g.total
			for _, c := range touched {
				gain := neighWeight[c] - resolution*commTot[c]*ki/g.total
				if gain > bestGain+moveEps {
					bestGain = gain
					best = c
				}
			}

			for _, c := range touched {
				neighWeight[c] = 0
			}
			neighWeight[old] = 0

			commTot[best] += ki
			if best != old {
				comm[i] = best
				movedInSweep = true
				anyMove = true
			}
		}
		if !movedInSweep {
			break
		}
	}
	return comm, anyMove
}

// aggregate collapses each community into a single node. Edge weights
// between communities are summed; intra-community weight (seen from both
// endpoints, plus prior self-loops) becomes the super-node's self-loop, so
// A_cc equals the ordered-pair internal weight and strengths are preserved
// across levels.
func aggregate(g *wgraph, comm []int, numComm int) *wgraph {
	type key struct{ a, b int }
	edgeW := make(map[key]float64)
	selfLoop := make([]float64, numComm)

	for i := 0; i < g.n; i++ {
		ci := comm[i]
		selfLoop[ci] += g.selfLoop[i]
		for p := g.indptr[i]; p < g.indptr[i+1]; p++ {
			j := g.indices[p]
			cj := comm[j]
			if ci == cj {
				selfLoop[ci] += g.weights[p]
				continue
			}
			if ci < cj {
				edgeW[key{ci, cj}] += g.weights[p]
			}
		}
	}

	// Sorted edge order keeps the CSR layout (and any downstream
	// tie-breaking) independent of map iteration.
	keys := make([]key, 0, len(edgeW))
	for k := range edgeW {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	deg := make([]int, numComm)
	for _, k := range keys {
		deg[k.a]++
		deg[k.b]++
	}
	out := &wgraph{
		n:        numComm,
		indptr:   make([]int, numComm+1),
		selfLoop: selfLoop,
		strength: make([]float64, numComm),
	}
	for i := 0; i < numComm; i++ {
		out.indptr[i+1] = out.indptr[i] + deg[i]
	}
	out.indices = make([]int, out.indptr[numComm])
	out.weights = make([]float64, out.indptr[numComm])
	fill := make([]int, numComm)
	copy(fill, out.indptr[:numComm])
	for _, k := range keys {
		w := edgeW[k]
		out.indices[fill[k.a]] = k.b
		out.weights[fill[k.a]] = w
		fill[k.a]++
		out.indices[fill[k.b]] = k.a
		out.weights[fill[k.b]] = w
		fill[k.b]++
	}
	for i := 0; i < numComm; i++ {
		s := out.selfLoop[i]
		for p := out.indptr[i]; p < out.indptr[i+1]; p++ {
			s += out.weights[p]
		}
		out.strength[i] = s
		out.total += s
	}
	return out
}

// modularity computes resolution-parameterized modularity of a labeling
// over the graph.
func modularity(g *wgraph, labels []int, resolution float64) float64 {
	if g.total == 0 {
		return 0
	}
	maxLabel := 0
	for _, l := range labels {
		if l > maxLabel {
			maxLabel = l
		}
	}
	// inW[c] is the ordered-pair internal weight of community c
	// (both directions of every internal edge, plus self-loops).
	inW := make([]float64, maxLabel+1)
	totW := make([]float64, maxLabel+1)
	for i := 0; i < g.n; i++ {
		ci := labels[i]
		totW[ci] += g.strength[i]
		inW[ci] += g.selfLoop[i]
		for p := g.indptr[i]; p < g.indptr[i+1]; p++ {
			if labels[g.indices[p]] == ci {
				inW[ci] += g.weights[p]
			}
		}
	}
	var q float64
	for c := range inW {
		q += inW[c]/g.total - resolution*(totW[c]/g.total)*(totW[c]/g.total)
	}
	return q
}

