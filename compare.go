package banksy

import (
	"fmt"
	"math"
)

// CompareMetric selects the partition-agreement score used by
// [CompareLabelings].
type CompareMetric string

const (
	// MetricARI is the adjusted Rand index: pairwise agreement corrected
	// for chance, roughly in [-1, 1], exactly 1 for identical partitions
	// and near 0 for independent ones.
	MetricARI CompareMetric = "ari"
	// MetricNMI is normalized mutual information with arithmetic-mean
	// normalization, in [0, 1], exactly 1 for partitions identical up to
	// relabeling.
	MetricNMI CompareMetric = "nmi"
)

// ComparisonMatrix is a symmetric matrix of pairwise agreement scores over
// a set of labelings. Diagonal entries equal the metric's identity value
// (1.0 for both supported metrics).
type ComparisonMatrix struct {
	Data []float64
	N    int
}

// At returns the score between labelings i and j.
func (m *ComparisonMatrix) At(i, j int) float64 { return m.Data[i*m.N+j] }

// CompareLabelings scores every pair of labelings under the chosen metric.
// All labelings must have the same length.
func CompareLabelings(labelings [][]int, metric CompareMetric) (*ComparisonMatrix, error) {
	if len(labelings) == 0 {
		return nil, fmt.Errorf("banksy: no labelings to compare")
	}
	n := len(labelings[0])
	for i, l := range labelings {
		if len(l) != n {
			return nil, fmt.Errorf("banksy: labeling %d has %d cells, labeling 0 has %d", i, len(l), n)
		}
	}

	var score func(a, b []int) float64
	switch metric {
	case MetricARI:
		score = AdjustedRandIndex
	case MetricNMI:
		score = NormalizedMutualInfo
	default:
		return nil, fmt.Errorf("banksy: invalid comparison metric %q", metric)
	}

	k := len(labelings)
	out := &ComparisonMatrix{Data: make([]float64, k*k), N: k}
	for i := 0; i < k; i++ {
		out.Data[i*k+i] = 1.0
		for j := i + 1; j < k; j++ {
			s := score(labelings[i], labelings[j])
			out.Data[i*k+j] = s
			out.Data[j*k+i] = s
		}
	}
	return out, nil
}

// contingency builds the joint count table of two equal-length labelings
// along with the marginal counts.
func contingency(a, b []int) (counts []int, rowSums, colSums []int, ka, kb int) {
	maxA, maxB := 0, 0
	for i := range a {
		if a[i] > maxA {
			maxA = a[i]
		}
		if b[i] > maxB {
			maxB = b[i]
		}
	}
	ka, kb = maxA+1, maxB+1
	counts = make([]int, ka*kb)
	rowSums = make([]int, ka)
	colSums = make([]int, kb)
	for i := range a {
		counts[a[i]*kb+b[i]]++
		rowSums[a[i]]++
		colSums[b[i]]++
	}
	return counts, rowSums, colSums, ka, kb
}

// AdjustedRandIndex computes the chance-corrected pairwise agreement
// between two labelings. Identical partitions score exactly 1.0;
// independent labelings score near 0.
func AdjustedRandIndex(a, b []int) float64 {
	n := len(a)
	if n == 0 {
		return 1.0
	}
	counts, rowSums, colSums, _, _ := contingency(a, b)

	var sumNij, sumAi, sumBj float64
	for _, c := range counts {
		sumNij += choose2(c)
	}
	for _, c := range rowSums {
		sumAi += choose2(c)
	}
	for _, c := range colSums {
		sumBj += choose2(c)
	}

	total := choose2(n)
	expected := sumAi * sumBj / total
	maxIndex := (sumAi + sumBj) / 2
	if maxIndex == expected {
		// Degenerate marginals (e.g., both partitions trivial): the
		// partitions agree completely.
		return 1.0
	}
	return (sumNij - expected) / (maxIndex - expected)
}

// NormalizedMutualInfo computes mutual information between two labelings
// normalized by the arithmetic mean of their entropies. Identical
// partitions (up to relabeling) score exactly 1.0.
func NormalizedMutualInfo(a, b []int) float64 {
	n := len(a)
	if n == 0 {
		return 1.0
	}
	counts, rowSums, colSums, ka, kb := contingency(a, b)

	fn := float64(n)
	var mi float64
	for i := 0; i < ka; i++ {
		for j := 0; j < kb; j++ {
			nij := counts[i*kb+j]
			if nij == 0 {
				continue
			}
			p := float64(nij) / fn
			mi += p * math.Log(p*fn*fn/(float64(rowSums[i])*float64(colSums[j])))
		}
	}

	ha := entropy(rowSums, fn)
	hb := entropy(colSums, fn)
	if ha == 0 && hb == 0 {
		return 1.0 // both partitions trivial, hence identical
	}
	v := mi / ((ha + hb) / 2)
	return clamp(v, 0, 1)
}

func entropy(sums []int, n float64) float64 {
	var h float64
	for _, c := range sums {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log(p)
	}
	return h
}

// choose2 returns n*(n-1)/2 as a float.
func choose2(n int) float64 {
	return float64(n) * float64(n-1) / 2
}
