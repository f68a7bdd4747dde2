package banksy

import (
	"errors"
	"fmt"
	"math"
)

// ClusterAlgorithm selects the partitioning strategy.
type ClusterAlgorithm string

const (
	// AlgorithmLouvain is modularity-based community detection by
	// iterative local moves and graph aggregation. Default.
	AlgorithmLouvain ClusterAlgorithm = "louvain"
	// AlgorithmLeiden adds a refinement phase between the local-move and
	// aggregation steps, avoiding badly connected communities.
	AlgorithmLeiden ClusterAlgorithm = "leiden"
	// AlgorithmKMeans is centroid clustering with kmeans++ seeding,
	// run on the embedding carried by the graph.
	AlgorithmKMeans ClusterAlgorithm = "kmeans"
	// AlgorithmGMM is a diagonal-covariance Gaussian mixture fitted by
	// EM, hardened to labels by maximum responsibility.
	AlgorithmGMM ClusterAlgorithm = "gmm"
)

func validAlgorithm(a ClusterAlgorithm) bool {
	switch a {
	case AlgorithmLouvain, AlgorithmLeiden, AlgorithmKMeans, AlgorithmGMM:
		return true
	}
	return false
}

// ErrNotConverged reports that a clustering run failed to reach a usable
// solution (e.g., a degenerate mixture component). The affected parameter
// combination is marked failed; sibling combinations are unaffected.
var ErrNotConverged = errors.New("banksy: clustering did not converge")

// ClusterResult is the output of one clustering run.
type ClusterResult struct {
	// Labels assigns each cell a contiguous non-negative cluster ID in
	// order of first appearance.
	Labels []int
	// NumClusters is the number of distinct labels.
	NumClusters int
	// Objective is the value the algorithm optimized: modularity for the
	// community modes, negated within-cluster sum of squares for kmeans,
	// mean log-likelihood for the mixture mode.
	Objective float64
	// Iterations is the number of optimization passes performed.
	Iterations int
}

// Clusterer partitions a shared-nearest-neighbor graph. Implementations
// must be deterministic for a fixed (graph, seed) pair.
type Clusterer interface {
	Fit(g *SNNGraph, seed int64) (*ClusterResult, error)
}

// NewClusterer builds the Clusterer for an algorithm selector. resolution
// parameterizes the community modes; for the centroid and mixture modes
// the cluster count is numClusters, or round(resolution) (minimum 2) when
// numClusters is zero.
func NewClusterer(algo ClusterAlgorithm, resolution float64, numClusters int) (Clusterer, error) {
	switch algo {
	case AlgorithmLouvain:
		return &LouvainClusterer{Resolution: resolution}, nil
	case AlgorithmLeiden:
		return &LeidenClusterer{Resolution: resolution}, nil
	case AlgorithmKMeans:
		return &KMeansClusterer{K: clusterCount(resolution, numClusters)}, nil
	case AlgorithmGMM:
		return &GMMClusterer{K: clusterCount(resolution, numClusters)}, nil
	default:
		return nil, fmt.Errorf("banksy: invalid clustering algorithm %q", algo)
	}
}

func clusterCount(resolution float64, numClusters int) int {
	if numClusters > 0 {
		return numClusters
	}
	k := int(math.Round(resolution))
	if k < 2 {
		k = 2
	}
	return k
}

// relabelContiguous rewrites labels in place to 0..K-1 in order of first
// appearance and returns K.
func relabelContiguous(labels []int) int {
	next := 0
	seen := make(map[int]int, 16)
	for i, l := range labels {
		id, ok := seen[l]
		if !ok {
			id = next
			seen[l] = id
			next++
		}
		labels[i] = id
	}
	return next
}
