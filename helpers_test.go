package banksy

import (
	"math"
	"math/rand"
	"testing"
)

// twoDomainData builds a synthetic tissue with two spatial domains: cells
// 0..n/2-1 sit on the left, the rest on the right, and each domain
// expresses its own half of the gene panel more strongly. Expression is
// genes × cells.
func twoDomainData(t testing.TB, genes, cells int, seed int64) (*Matrix, *Coords, []int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	coords := make([]float64, cells*2)
	truth := make([]int, cells)
	half := cells / 2
	for i := 0; i < cells; i++ {
		x := rng.Float64() * 10
		if i >= half {
			x += 30
			truth[i] = 1
		}
		coords[i*2] = x
		coords[i*2+1] = rng.Float64() * 10
	}

	expr := NewMatrix(genes, cells)
	for g := 0; g < genes; g++ {
		for c := 0; c < cells; c++ {
			base := 1.0
			if (g < genes/2) == (truth[c] == 0) {
				base = 8.0
			}
			expr.Set(g, c, base+rng.NormFloat64())
		}
	}

	co, err := NewCoords(coords, cells, 2)
	if err != nil {
		t.Fatalf("NewCoords: %v", err)
	}
	return expr, co, truth
}

// twoBlobEmbedding builds a cells × dims embedding with two well separated
// Gaussian blobs, half the cells in each.
func twoBlobEmbedding(t testing.TB, cells, dims int, seed int64) (*Matrix, []int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	emb := NewMatrix(cells, dims)
	truth := make([]int, cells)
	half := cells / 2
	for i := 0; i < cells; i++ {
		shift := 0.0
		if i >= half {
			shift = 50.0
			truth[i] = 1
		}
		for j := 0; j < dims; j++ {
			emb.Set(i, j, shift+rng.NormFloat64())
		}
	}
	return emb, truth
}

// twoBlobGraph builds the SNN graph over a two-blob embedding.
func twoBlobGraph(t testing.TB, cells, k int, seed int64) (*SNNGraph, []int) {
	t.Helper()
	emb, truth := twoBlobEmbedding(t, cells, 2, seed)
	g, err := BuildSNNGraph(emb, k, 0, 1)
	if err != nil {
		t.Fatalf("BuildSNNGraph: %v", err)
	}
	return g, truth
}

// agreesWithTruth checks that labels partition the cells exactly like
// truth does, up to renaming.
func agreesWithTruth(labels, truth []int) bool {
	if len(labels) != len(truth) {
		return false
	}
	fwd := make(map[int]int)
	rev := make(map[int]int)
	for i := range labels {
		if l, ok := fwd[truth[i]]; ok && l != labels[i] {
			return false
		}
		if tr, ok := rev[labels[i]]; ok && tr != truth[i] {
			return false
		}
		fwd[truth[i]] = labels[i]
		rev[labels[i]] = truth[i]
	}
	return true
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatsNear(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
