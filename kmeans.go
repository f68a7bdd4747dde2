package banksy

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansClusterer is the centroid mode: a fixed number of clusters fitted
// by Lloyd iterations from a seeded kmeans++ initialization over the
// embedding carried by the graph.
type KMeansClusterer struct {
	// K is the number of clusters. Must be >= 1; clamped to the cell count.
	K int
	// MaxIter caps the Lloyd iterations. 0 means 100.
	MaxIter int
	// Tol stops iteration when no centroid moves more than this (squared
	// Euclidean). 0 means 1e-6.
	Tol float64
	// Workers bounds assignment-phase parallelism.
	Workers int
}

func (c *KMeansClusterer) Fit(g *SNNGraph, seed int64) (*ClusterResult, error) {
	emb := g.Embedding()
	if emb == nil || emb.Rows == 0 {
		return nil, fmt.Errorf("banksy: graph carries no embedding")
	}
	if c.K < 1 {
		return nil, fmt.Errorf("banksy: K must be >= 1, got %d", c.K)
	}
	maxIter := c.MaxIter
	if maxIter == 0 {
		maxIter = 100
	}
	tol := c.Tol
	if tol == 0 {
		tol = 1e-6
	}

	n, d := emb.Rows, emb.Cols
	k := c.K
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := kmeansPlusPlus(emb, k, rng)
	labels := make([]int, n)
	dists := make([]float64, n) // squared distance to assigned centroid

	iters := 0
	for iter := 0; iter < maxIter; iter++ {
		iters++
		parallelRows(n, c.Workers, func(start, end int) {
			for i := start; i < end; i++ {
				row := emb.Row(i)
				best, bestSq := 0, math.Inf(1)
				for j := 0; j < k; j++ {
					sq := euclideanSumOfSquares(row, centroids[j*d:(j+1)*d])
					if sq < bestSq {
						bestSq = sq
						best = j
					}
				}
				labels[i] = best
				dists[i] = bestSq
			}
		})

		next := make([]float64, k*d)
		counts := make([]int, k)
		for i := 0; i < n; i++ {
			counts[labels[i]]++
			row := emb.Row(i)
			base := labels[i] * d
			for t := 0; t < d; t++ {
				next[base+t] += row[t]
			}
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				// Reseed an empty cluster at the point farthest from its
				// centroid (lowest index on ties).
				far, farSq := 0, -1.0
				for i := 0; i < n; i++ {
					if dists[i] > farSq {
						farSq = dists[i]
						far = i
					}
				}
				copy(next[j*d:(j+1)*d], emb.Row(far))
				dists[far] = 0
				continue
			}
			inv := 1 / float64(counts[j])
			for t := 0; t < d; t++ {
				next[j*d+t] *= inv
			}
		}

		var maxShift float64
		for j := 0; j < k; j++ {
			if sq := euclideanSumOfSquares(centroids[j*d:(j+1)*d], next[j*d:(j+1)*d]); sq > maxShift {
				maxShift = sq
			}
		}
		centroids = next
		if maxShift <= tol {
			break
		}
	}

	var wcss float64
	for i := 0; i < n; i++ {
		wcss += euclideanSumOfSquares(emb.Row(i), centroids[labels[i]*d:(labels[i]+1)*d])
	}

	numClusters := relabelContiguous(labels)
	return &ClusterResult{
		Labels:      labels,
		NumClusters: numClusters,
		Objective:   -wcss,
		Iterations:  iters,
	}, nil
}

// kmeansPlusPlus picks k initial centroids: the first uniformly at random,
// each later one with probability proportional to its squared distance
// from the nearest centroid chosen so far.
func kmeansPlusPlus(emb *Matrix, k int, rng *rand.Rand) []float64 {
	n, d := emb.Rows, emb.Cols
	centroids := make([]float64, k*d)
	copy(centroids[:d], emb.Row(rng.Intn(n)))

	minSq := make([]float64, n)
	for i := 0; i < n; i++ {
		minSq[i] = euclideanSumOfSquares(emb.Row(i), centroids[:d])
	}

	for j := 1; j < k; j++ {
		var total float64
		for _, sq := range minSq {
			total += sq
		}
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			acc := 0.0
			for i, sq := range minSq {
				acc += sq
				if acc >= r {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(n) // all points coincide with a centroid
		}
		copy(centroids[j*d:(j+1)*d], emb.Row(pick))
		for i := 0; i < n; i++ {
			if sq := euclideanSumOfSquares(emb.Row(i), centroids[j*d:(j+1)*d]); sq < minSq[i] {
				minSq[i] = sq
			}
		}
	}
	return centroids
}
