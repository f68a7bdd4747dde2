package banksy

import (
	"fmt"
	"math"
)

// NeighborSets holds, for each cell, the indices and Euclidean distances of
// its nearest neighbors in coordinate space, sorted by ascending distance
// with ties broken by ascending index. The cell itself is excluded. When
// fewer than K other cells exist, each set simply contains all of them.
type NeighborSets struct {
	// K is the requested neighbor count. Individual sets may be smaller
	// on small inputs.
	K         int
	Indices   [][]int
	Distances [][]float64
}

// Cells returns the number of cells the sets were built for.
func (s *NeighborSets) Cells() int { return len(s.Indices) }

// FindNeighbors computes the k nearest neighbors of every cell in
// coordinate space. The search is deterministic: identical coordinates and
// k always produce identical sets.
func FindNeighbors(coords *Coords, k, workers int) (*NeighborSets, error) {
	if coords == nil {
		return nil, fmt.Errorf("banksy: coordinates must be non-nil")
	}
	if k <= 0 {
		return nil, fmt.Errorf("banksy: neighbor count must be positive, got %d", k)
	}

	n := coords.Cells
	sets := &NeighborSets{
		K:         k,
		Indices:   make([][]int, n),
		Distances: make([][]float64, n),
	}
	if n == 0 {
		return sets, nil
	}

	eff := k
	if eff > n-1 {
		eff = n - 1 // use every other cell when fewer than k exist
	}
	if eff == 0 {
		for i := range sets.Indices {
			sets.Indices[i] = []int{}
			sets.Distances[i] = []float64{}
		}
		return sets, nil
	}

	tree := newKDTree(coords.Data, n, coords.Dims)
	parallelRows(n, workers, func(start, end int) {
		for c := start; c < end; c++ {
			idx, dist := tree.query(coords.Cell(c), eff, c)
			sets.Indices[c] = idx
			sets.Distances[c] = dist
		}
	})
	return sets, nil
}

// Kernel selects the neighbor weighting function used by the feature
// builders. Weights always decrease with neighbor rank (or stay flat for
// the uniform kernel) and are normalized to sum to 1 per cell.
type Kernel string

const (
	// KernelGaussian weights by exp(-(d/sigma)^2) where sigma is the mean
	// neighbor distance of the cell. Degenerate all-zero distances fall
	// back to uniform weights. This is the default.
	KernelGaussian Kernel = "gaussian"
	// KernelRank weights by 1/(rank+1).
	KernelRank Kernel = "rank"
	// KernelUniform weights every neighbor equally.
	KernelUniform Kernel = "uniform"
)

func validKernel(k Kernel) bool {
	switch k {
	case KernelGaussian, KernelRank, KernelUniform:
		return true
	}
	return false
}

// neighborWeights computes normalized weights for one cell's neighbor
// distances. Returns nil for an empty neighbor set.
func neighborWeights(dists []float64, kernel Kernel) []float64 {
	m := len(dists)
	if m == 0 {
		return nil
	}
	w := make([]float64, m)

	switch kernel {
	case KernelRank:
		for j := range w {
			w[j] = 1.0 / float64(j+1)
		}
	case KernelUniform:
		for j := range w {
			w[j] = 1.0
		}
	default: // KernelGaussian
		var sigma float64
		for _, d := range dists {
			sigma += d
		}
		sigma /= float64(m)
		if sigma == 0 {
			for j := range w {
				w[j] = 1.0
			}
		} else {
			for j, d := range dists {
				r := d / sigma
				w[j] = math.Exp(-r * r)
			}
		}
	}

	var sum float64
	for _, v := range w {
		sum += v
	}
	for j := range w {
		w[j] /= sum
	}
	return w
}

// MeanNeighborFeature computes the neighbor-weighted local mean of
// expression: for each gene g and cell c, the weighted average of g's
// expression over c's neighbors. The output has the same genes × cells
// shape and cell ordering as expr. Cells with no neighbors get zeros.
func MeanNeighborFeature(expr *Matrix, nbrs *NeighborSets, kernel Kernel, workers int) (*Matrix, error) {
	if err := checkFeatureInputs(expr, nbrs, kernel); err != nil {
		return nil, err
	}

	cells := expr.Cols
	weights := make([][]float64, cells)
	for c := 0; c < cells; c++ {
		weights[c] = neighborWeights(nbrs.Distances[c], kernel)
	}

	out := NewMatrix(expr.Rows, cells)
	parallelRows(expr.Rows, workers, func(start, end int) {
		for g := start; g < end; g++ {
			src := expr.Row(g)
			dst := out.Row(g)
			for c := 0; c < cells; c++ {
				var acc float64
				idx := nbrs.Indices[c]
				w := weights[c]
				for j, ni := range idx {
					acc += w[j] * src[ni]
				}
				dst[c] = acc
			}
		}
	})
	return out, nil
}

// AzimuthalNeighborFeature computes the first azimuthal harmonic of the
// neighbor expression: for each gene g and cell c,
//
//	sqrt( (Σ_j w_j cos(φ_j) x_j)² + (Σ_j w_j sin(φ_j) x_j)² )
//
// where φ_j is the planar angle of neighbor j relative to c and x_j is
// g's expression at neighbor j. The magnitude is large when expression is
// concentrated on one side of the cell, encoding a local gradient. For
// 3-D coordinates the angle is taken in the first two axes.
func AzimuthalNeighborFeature(expr *Matrix, coords *Coords, nbrs *NeighborSets, kernel Kernel, workers int) (*Matrix, error) {
	if err := checkFeatureInputs(expr, nbrs, kernel); err != nil {
		return nil, err
	}
	if err := checkAligned(expr, coords); err != nil {
		return nil, err
	}

	cells := expr.Cols
	weights := make([][]float64, cells)
	cosA := make([][]float64, cells)
	sinA := make([][]float64, cells)
	for c := 0; c < cells; c++ {
		weights[c] = neighborWeights(nbrs.Distances[c], kernel)
		idx := nbrs.Indices[c]
		cosA[c] = make([]float64, len(idx))
		sinA[c] = make([]float64, len(idx))
		cc := coords.Cell(c)
		for j, ni := range idx {
			nc := coords.Cell(ni)
			phi := math.Atan2(nc[1]-cc[1], nc[0]-cc[0])
			cosA[c][j] = math.Cos(phi)
			sinA[c][j] = math.Sin(phi)
		}
	}

	out := NewMatrix(expr.Rows, cells)
	parallelRows(expr.Rows, workers, func(start, end int) {
		for g := start; g < end; g++ {
			src := expr.Row(g)
			dst := out.Row(g)
			for c := 0; c < cells; c++ {
				var re, im float64
				idx := nbrs.Indices[c]
				w := weights[c]
				for j, ni := range idx {
					v := w[j] * src[ni]
					re += v * cosA[c][j]
					im += v * sinA[c][j]
				}
				dst[c] = math.Hypot(re, im)
			}
		}
	})
	return out, nil
}

func checkFeatureInputs(expr *Matrix, nbrs *NeighborSets, kernel Kernel) error {
	if expr == nil || nbrs == nil {
		return fmt.Errorf("banksy: expression and neighbor sets must be non-nil")
	}
	if nbrs.Cells() != expr.Cols {
		return fmt.Errorf("banksy: neighbor sets cover %d cells but expression has %d", nbrs.Cells(), expr.Cols)
	}
	if !validKernel(kernel) {
		return fmt.Errorf("banksy: invalid kernel %q", kernel)
	}
	return nil
}
