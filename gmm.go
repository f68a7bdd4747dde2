package banksy

import (
	"fmt"
	"math"
)

// GMMClusterer is the mixture mode: a diagonal-covariance Gaussian mixture
// fitted by EM from a seeded kmeans initialization, converted to hard
// labels by maximum responsibility. Degenerate inputs (e.g., a component
// collapsing onto a single point) surface as [ErrNotConverged]; in a grid
// sweep only the affected combination fails.
type GMMClusterer struct {
	// K is the number of mixture components. Must be >= 1.
	K int
	// MaxIter caps the EM iterations. 0 means 100.
	MaxIter int
	// Tol stops iteration when the mean log-likelihood improves by less
	// than this. 0 means 1e-4.
	Tol float64
	// RegCovar is the variance floor added to every dimension. 0 means 1e-6.
	RegCovar float64
	// Workers bounds E-step parallelism.
	Workers int
}

func (c *GMMClusterer) Fit(g *SNNGraph, seed int64) (*ClusterResult, error) {
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
		tol = 1e-4
	}
	regCovar := c.RegCovar
	if regCovar == 0 {
		regCovar = 1e-6
	}

	n, d := emb.Rows, emb.Cols
	k := c.K
	if k > n {
		k = n
	}

	// Initialize from a short centroid run with the same seed.
	init := &KMeansClusterer{K: k, MaxIter: 10, Workers: c.Workers}
	kmRes, err := init.Fit(g, seed)
	if err != nil {
		return nil, err
	}
	if kmRes.NumClusters < k {
		k = kmRes.NumClusters
	}

	weights := make([]float64, k)
	means := make([]float64, k*d)
	vars := make([]float64, k*d)
	counts := make([]int, k)
	for i := 0; i < n; i++ {
		j := kmRes.Labels[i]
		counts[j]++
		row := emb.Row(i)
		for t := 0; t < d; t++ {
			means[j*d+t] += row[t]
		}
	}
	for j := 0; j < k; j++ {
		weights[j] = float64(counts[j]) / float64(n)
		for t := 0; t < d; t++ {
			means[j*d+t] /= float64(counts[j])
		}
	}
	for i := 0; i < n; i++ {
		j := kmRes.Labels[i]
		row := emb.Row(i)
		for t := 0; t < d; t++ {
			dev := row[t] - means[j*d+t]
			vars[j*d+t] += dev * dev
		}
	}
	for j := 0; j < k; j++ {
		for t := 0; t < d; t++ {
			vars[j*d+t] = vars[j*d+t]/float64(counts[j]) + regCovar
		}
	}

	labels, ll, iters, err := runEM(emb, k, weights, means, vars, maxIter, tol, regCovar, c.Workers)
	if err != nil {
		return nil, err
	}

	numClusters := relabelContiguous(labels)
	return &ClusterResult{
		Labels:      labels,
		NumClusters: numClusters,
		Objective:   ll,
		Iterations:  iters,
	}, nil
}

// runEM iterates diagonal-covariance EM from the supplied mixture state,
// mutating weights, means, and vars in place, and returns hard labels by
// maximum responsibility with the final mean log-likelihood and iteration
// count. Degenerate states (a NaN likelihood or a component losing all
// responsibility mass) surface as [ErrNotConverged].
func runEM(emb *Matrix, k int, weights, means, vars []float64, maxIter int, tol, regCovar float64, workers int) ([]int, float64, int, error) {
	n, d := emb.Rows, emb.Cols
	logResp := make([]float64, n*k)
	prevLL := math.Inf(-1)
	iters := 0

	for iter := 0; iter < maxIter; iter++ {
		iters++

		// E step.
		var llSum float64
		llParts := make([]float64, n)
		parallelRows(n, workers, func(start, end int) {
			for i := start; i < end; i++ {
				row := emb.Row(i)
				lr := logResp[i*k : (i+1)*k]
				for j := 0; j < k; j++ {
					lp := math.Log(weights[j])
					for t := 0; t < d; t++ {
						v := vars[j*d+t]
						dev := row[t] - means[j*d+t]
						lp += -0.5*math.Log(2*math.Pi*v) - dev*dev/(2*v)
					}
					lr[j] = lp
				}
				norm := logSumExp(lr)
				llParts[i] = norm
				for j := 0; j < k; j++ {
					lr[j] -= norm
				}
			}
		})
		for _, v := range llParts {
			llSum += v
		}
		ll := llSum / float64(n)
		if math.IsNaN(ll) || math.IsInf(ll, 1) {
			return nil, 0, 0, fmt.Errorf("banksy: mixture likelihood degenerated at iteration %d: %w", iter, ErrNotConverged)
		}

		// M step.
		for j := 0; j < k; j++ {
			var nj float64
			for i := 0; i < n; i++ {
				nj += math.Exp(logResp[i*k+j])
			}
			if nj < 1e-10 {
				return nil, 0, 0, fmt.Errorf("banksy: mixture component %d collapsed: %w", j, ErrNotConverged)
			}
			weights[j] = nj / float64(n)
			for t := 0; t < d; t++ {
				means[j*d+t] = 0
			}
			for i := 0; i < n; i++ {
				r := math.Exp(logResp[i*k+j])
				row := emb.Row(i)
				for t := 0; t < d; t++ {
					means[j*d+t] += r * row[t]
				}
			}
			for t := 0; t < d; t++ {
				means[j*d+t] /= nj
				vars[j*d+t] = 0
			}
			for i := 0; i < n; i++ {
				r := math.Exp(logResp[i*k+j])
				row := emb.Row(i)
				for t := 0; t < d; t++ {
					dev := row[t] - means[j*d+t]
					vars[j*d+t] += r * dev * dev
				}
			}
			for t := 0; t < d; t++ {
				vars[j*d+t] = vars[j*d+t]/nj + regCovar
			}
		}

		if ll-prevLL < tol && iter > 0 {
			prevLL = ll
			break
		}
		prevLL = ll
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		lr := logResp[i*k : (i+1)*k]
		best := 0
		for j := 1; j < k; j++ {
			if lr[j] > lr[best] {
				best = j
			}
		}
		labels[i] = best
	}
	return labels, prevLL, iters, nil
}

// logSumExp computes log(sum(exp(x))) stably.
func logSumExp(x []float64) float64 {
	maxV := math.Inf(-1)
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(maxV, -1) {
		return maxV
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(v - maxV)
	}
	return maxV + math.Log(sum)
}
