package banksy

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

// bruteKNN is the reference: full scan sorted by squared distance, ties
// broken by index, excluding one point.
func bruteKNN(points []float64, n, dims int, query []float64, k, exclude int) ([]int, []float64) {
	type cand struct {
		idx int
		sq  float64
	}
	cands := make([]cand, 0, n)
	for i := 0; i < n; i++ {
		if i == exclude {
			continue
		}
		sq := euclideanSumOfSquares(query, points[i*dims:(i+1)*dims])
		cands = append(cands, cand{idx: i, sq: sq})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].sq != cands[b].sq {
			return cands[a].sq < cands[b].sq
		}
		return cands[a].idx < cands[b].idx
	})
	if k > len(cands) {
		k = len(cands)
	}
	idx := make([]int, k)
	dist := make([]float64, k)
	for i := 0; i < k; i++ {
		idx[i] = cands[i].idx
		dist[i] = cands[i].sq
	}
	for i := range dist {
		dist[i] = math.Sqrt(dist[i])
	}
	return idx, dist
}

func TestKDTreeMatchesBruteForce(t *testing.T) {
	for _, dims := range []int{2, 3, 5} {
		rng := rand.New(rand.NewSource(int64(dims)))
		n := 200
		points := make([]float64, n*dims)
		for i := range points {
			points[i] = rng.Float64() * 100
		}
		tree := newKDTree(points, n, dims)

		for q := 0; q < n; q += 17 {
			gotIdx, gotDist := tree.query(points[q*dims:(q+1)*dims], 10, q)
			wantIdx, wantDist := bruteKNN(points, n, dims, points[q*dims:(q+1)*dims], 10, q)
			if !intsEqual(gotIdx, wantIdx) {
				t.Fatalf("dims=%d query=%d: indices = %v, want %v", dims, q, gotIdx, wantIdx)
			}
			if !floatsNear(gotDist, wantDist, 1e-9) {
				t.Fatalf("dims=%d query=%d: distances = %v, want %v", dims, q, gotDist, wantDist)
			}
		}
	}
}

func TestKDTreeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n, dims := 150, 3
	points := make([]float64, n*dims)
	for i := range points {
		points[i] = rng.NormFloat64()
	}

	t1 := newKDTree(points, n, dims)
	t2 := newKDTree(points, n, dims)
	for q := 0; q < n; q++ {
		i1, d1 := t1.query(points[q*dims:(q+1)*dims], 7, q)
		i2, d2 := t2.query(points[q*dims:(q+1)*dims], 7, q)
		if !intsEqual(i1, i2) || !floatsNear(d1, d2, 0) {
			t.Fatalf("query %d differs between identical trees", q)
		}
	}
}

func TestKDTreeTieBreaksByIndex(t *testing.T) {
	// Four corners of a unit square plus the center: the corners are all
	// equidistant from the center, so ties must resolve by ascending index.
	points := []float64{
		1, 1,
		-1, 1,
		-1, -1,
		1, -1,
		0, 0,
	}
	tree := newKDTree(points, 5, 2)
	idx, dist := tree.query([]float64{0, 0}, 4, 4)
	if !intsEqual(idx, []int{0, 1, 2, 3}) {
		t.Fatalf("tied neighbors = %v, want [0 1 2 3]", idx)
	}
	for i, d := range dist {
		if d != dist[0] {
			t.Fatalf("distance %d = %v, want %v", i, d, dist[0])
		}
	}
}

func TestKDTreeDuplicatePoints(t *testing.T) {
	points := []float64{
		2, 2,
		2, 2,
		2, 2,
		9, 9,
	}
	tree := newKDTree(points, 4, 2)
	idx, dist := tree.query(points[0:2], 3, 0)
	if !intsEqual(idx, []int{1, 2, 3}) {
		t.Fatalf("indices = %v, want [1 2 3]", idx)
	}
	if dist[0] != 0 || dist[1] != 0 {
		t.Fatalf("duplicate distances = %v, want zeros first", dist[:2])
	}
	if dist[2] <= 0 {
		t.Fatalf("distinct point distance = %v, want > 0", dist[2])
	}
}

func TestKDTreeSmallInputs(t *testing.T) {
	points := []float64{1, 2, 3, 4}
	tree := newKDTree(points, 2, 2)
	idx, dist := tree.query(points[0:2], 1, 0)
	if len(idx) != 1 || idx[0] != 1 {
		t.Fatalf("idx = %v, want [1]", idx)
	}
	if len(dist) != 1 {
		t.Fatalf("dist = %v, want one entry", dist)
	}
}
