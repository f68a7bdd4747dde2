package banksy

import (
	"fmt"
	"math/rand"
)

// LeidenClusterer partitions the SNN graph like [LouvainClusterer] but adds
// a refinement phase between the local-move and aggregation steps: each
// community is re-partitioned from singletons before its parts are
// collapsed, so aggregation can later split communities that the plain
// local move would have frozen. Higher Resolution yields more, smaller
// communities.
type LeidenClusterer struct {
	// Resolution is the modularity resolution parameter. Must be > 0.
	Resolution float64
	// MaxLevels caps the number of aggregation rounds. 0 means 20.
	MaxLevels int
}

func (c *LeidenClusterer) Fit(g *SNNGraph, seed int64) (*ClusterResult, error) {
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
		return &ClusterResult{Labels: labels, NumClusters: min(n, 1)}, nil
	}

	rng := rand.New(rand.NewSource(seed))
	cur := newWGraph(g)
	for i := range labels {
		labels[i] = i
	}

	var init []int
	levels := 0
	for level := 0; level < maxLevels; level++ {
		comm, moved := localMove(cur, c.Resolution, rng, init)
		nc := relabelContiguous(comm)
		levels++
		if (!moved && level > 0) || nc == cur.n {
			for i := range labels {
				labels[i] = comm[labels[i]]
			}
			break
		}

		refined := refinePartition(cur, comm, c.Resolution, rng)
		nr := relabelContiguous(refined)
		// The aggregate node for each refined cluster starts in the
		// community its members were assigned by the local move.
		init = make([]int, nr)
		for i, r := range refined {
			init[r] = comm[i]
		}
		for i := range labels {
			labels[i] = refined[labels[i]]
		}
		cur = aggregate(cur, refined, nr)

		if level == maxLevels-1 {
			// Out of rounds: collapse to the coarse communities.
			for i := range labels {
				labels[i] = init[labels[i]]
			}
		}
	}

	numClusters := relabelContiguous(labels)
	return &ClusterResult{
		Labels:      labels,
		NumClusters: numClusters,
		Objective:   modularity(newWGraph(g), labels, c.Resolution),
		Iterations:  levels,
	}, nil
}

// refinePartition splits every community back into singletons and greedily
// re-merges nodes inside their own community only. A node may merge only
// while it is still a singleton, into the sub-cluster with the best
// strictly positive modularity gain. Visit order is seeded.
func refinePartition(g *wgraph, comm []int, resolution float64, rng *rand.Rand) []int {
	refined := make([]int, g.n)
	refTot := make([]float64, g.n)
	refSize := make([]int, g.n)
	for i := range refined {
		refined[i] = i
		refTot[i] = g.strength[i]
		refSize[i] = 1
	}

	neighWeight := make([]float64, g.n)
	touched := make([]int, 0, 64)

	for _, i := range rng.Perm(g.n) {
		if refSize[refined[i]] > 1 {
			continue // only singletons may merge
		}
		ki := g.strength[i]
		old := refined[i]
		refTot[old] -= ki

		touched = touched[:0]
		for p := g.indptr[i]; p < g.indptr[i+1]; p++ {
			j := g.indices[p]
			if j == i || comm[j] != comm[i] {
				continue
			}
			r := refined[j]
			if neighWeight[r] == 0 {
				touched = append(touched, r)
			}
			neighWeight[r] += g.weights[p]
		}

		best := old
		bestGain := 0.0
		for _, r := range touched {
			gain := neighWeight[r] - resolution*refTot[r]*ki/g.total
			if gain > bestGain+moveEps {
				bestGain = gain
				best = r
			}
		}
		for _, r := range touched {
			neighWeight[r] = 0
		}

		refTot[best] += ki
		if best != old {
			refined[i] = best
			refSize[best]++
			refSize[old]--
		}
	}
	return refined
}
