package banksy

import (
	"fmt"
	"math"
	"math/rand"
)

// NonlinearConfig controls [EmbedNonlinear].
type NonlinearConfig struct {
	// OutDims is the output dimensionality. Default: 2.
	OutDims int
	// Neighbors is the kNN graph size used for attractive forces.
	// Default: 15.
	Neighbors int
	// Epochs is the number of optimization passes over the edge list.
	// Default: 200.
	Epochs int
	// LearnRate is the initial SGD step size, decayed linearly to zero.
	// Default: 1.0.
	LearnRate float64
	// NegativeRate is the number of repulsive samples drawn per edge
	// endpoint per epoch. Default: 5.
	NegativeRate int
	// Seed drives layout initialization and negative sampling.
	Seed int64
	// Workers bounds the parallelism of the kNN graph construction.
	Workers int
}

// DefaultNonlinearConfig returns a NonlinearConfig with reasonable defaults.
func DefaultNonlinearConfig() NonlinearConfig {
	return NonlinearConfig{OutDims: 2, Neighbors: 15, Epochs: 200, LearnRate: 1.0, NegativeRate: 5}
}

func (cfg *NonlinearConfig) applyDefaults() {
	if cfg.OutDims == 0 {
		cfg.OutDims = 2
	}
	if cfg.Neighbors == 0 {
		cfg.Neighbors = 15
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 200
	}
	if cfg.LearnRate == 0 {
		cfg.LearnRate = 1.0
	}
	if cfg.NegativeRate == 0 {
		cfg.NegativeRate = 5
	}
}

func (cfg *NonlinearConfig) validate() error {
	if cfg.OutDims < 1 {
		return fmt.Errorf("banksy: nonlinear OutDims must be >= 1, got %d", cfg.OutDims)
	}
	if cfg.Neighbors < 1 {
		return fmt.Errorf("banksy: nonlinear Neighbors must be >= 1, got %d", cfg.Neighbors)
	}
	if cfg.Epochs < 1 {
		return fmt.Errorf("banksy: nonlinear Epochs must be >= 1, got %d", cfg.Epochs)
	}
	if cfg.NegativeRate < 0 {
		return fmt.Errorf("banksy: nonlinear NegativeRate must be >= 0, got %d", cfg.NegativeRate)
	}
	return nil
}

// EmbedNonlinear computes a low-dimensional stochastic neighbor layout of
// the principal-component embedding, for visualization only: attractive
// forces act along kNN edges, repulsive forces come from seeded negative
// sampling. The layout is initialized from the input's leading columns, so
// the result is fully determined by (embedding, config, seed). It never
// feeds back into clustering.
func EmbedNonlinear(embedding *Matrix, cfg NonlinearConfig) (*Matrix, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if embedding == nil || embedding.Rows == 0 {
		return nil, fmt.Errorf("banksy: embedding must be non-empty")
	}

	n := embedding.Rows
	d := cfg.OutDims

	// Edge list from the kNN graph, weighted by a per-row exponential
	// falloff from the nearest neighbor distance.
	k := cfg.Neighbors
	if k > n-1 {
		k = n - 1
	}
	type edge struct {
		a, b int
		w    float64
	}
	var edges []edge
	if k > 0 {
		tree := newKDTree(embedding.Data, n, embedding.Cols)
		nbrIdx := make([][]int, n)
		nbrDist := make([][]float64, n)
		parallelRows(n, cfg.Workers, func(start, end int) {
			for i := start; i < end; i++ {
				nbrIdx[i], nbrDist[i] = tree.query(embedding.Row(i), k, i)
			}
		})
		for i := 0; i < n; i++ {
			dists := nbrDist[i]
			rho := dists[0]
			scale := dists[len(dists)-1] - rho
			if scale <= 0 {
				scale = 1
			}
			for j, ni := range nbrIdx[i] {
				w := math.Exp(-(dists[j] - rho) / scale)
				edges = append(edges, edge{a: i, b: ni, w: w})
			}
		}
	}

	// Initialize from the leading input columns, rescaled to a compact
	// range so early epochs do not explode.
	layout := NewMatrix(n, d)
	var maxAbs float64
	for i := 0; i < n; i++ {
		for j := 0; j < d && j < embedding.Cols; j++ {
			v := embedding.At(i, j)
			layout.Set(i, j, v)
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
	}
	if maxAbs > 0 {
		for i := range layout.Data {
			layout.Data[i] *= 10 / maxAbs
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	grad := make([]float64, d)

	const clip = 4.0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		lr := cfg.LearnRate * (1 - float64(epoch)/float64(cfg.Epochs))
		for _, e := range edges {
			yi := layout.Row(e.a)
			yj := layout.Row(e.b)

			// Attraction along the edge.
			var sq float64
			for t := 0; t < d; t++ {
				g := yj[t] - yi[t]
				grad[t] = g
				sq += g * g
			}
			coef := e.w * 2 * sq / (1 + sq)
			if sq > 0 {
				coef /= math.Sqrt(sq)
			}
			for t := 0; t < d; t++ {
				step := clamp(coef*grad[t], -clip, clip) * lr
				yi[t] += step
				yj[t] -= step
			}

			// Repulsion from negative samples.
			for s := 0; s < cfg.NegativeRate; s++ {
				nj := rng.Intn(n)
				if nj == e.a {
					continue
				}
				yn := layout.Row(nj)
				var sq2 float64
				for t := 0; t < d; t++ {
					g := yn[t] - yi[t]
					grad[t] = g
					sq2 += g * g
				}
				rcoef := 2 / ((0.001 + sq2) * (1 + sq2))
				for t := 0; t < d; t++ {
					yi[t] -= clamp(rcoef*grad[t], -clip, clip) * lr
				}
			}
		}
	}
	return layout, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
