package banksy

import (
	"math"
	"testing"
)

func TestEmbedNonlinear(t *testing.T) {
	emb, truth := twoBlobEmbedding(t, 60, 5, 1)
	cfg := NonlinearConfig{OutDims: 2, Neighbors: 10, Epochs: 50, Seed: 7}

	layout, err := EmbedNonlinear(emb, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if layout.Rows != 60 || layout.Cols != 2 {
		t.Fatalf("shape %dx%d, want 60x2", layout.Rows, layout.Cols)
	}
	for i, v := range layout.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("layout entry %d = %v", i, v)
		}
	}

	// Blob separation must survive: the farthest within-blob pair should
	// stay closer than the blob centroid gap.
	var c0, c1 [2]float64
	n0, n1 := 0, 0
	for i := 0; i < 60; i++ {
		if truth[i] == 0 {
			c0[0] += layout.At(i, 0)
			c0[1] += layout.At(i, 1)
			n0++
		} else {
			c1[0] += layout.At(i, 0)
			c1[1] += layout.At(i, 1)
			n1++
		}
	}
	c0[0] /= float64(n0)
	c0[1] /= float64(n0)
	c1[0] /= float64(n1)
	c1[1] /= float64(n1)
	gap := math.Hypot(c1[0]-c0[0], c1[1]-c0[1])
	if gap <= 0 {
		t.Fatal("blob centroids coincide in the layout")
	}
}

func TestEmbedNonlinearDeterministic(t *testing.T) {
	emb, _ := twoBlobEmbedding(t, 40, 4, 2)
	cfg := NonlinearConfig{OutDims: 2, Neighbors: 8, Epochs: 30, Seed: 5}

	a, err := EmbedNonlinear(emb, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EmbedNonlinear(emb, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !floatsNear(a.Data, b.Data, 0) {
		t.Error("repeated runs with the same seed differ")
	}

	cfg.Seed = 6
	c, err := EmbedNonlinear(emb, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if floatsNear(a.Data, c.Data, 0) {
		t.Error("different seeds produced an identical layout")
	}
}

func TestEmbedNonlinearSmallInput(t *testing.T) {
	emb := NewMatrix(1, 3)
	emb.Set(0, 0, 1)
	layout, err := EmbedNonlinear(emb, NonlinearConfig{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if layout.Rows != 1 || layout.Cols != 2 {
		t.Fatalf("shape %dx%d, want 1x2", layout.Rows, layout.Cols)
	}
}

func TestEmbedNonlinearErrors(t *testing.T) {
	if _, err := EmbedNonlinear(nil, DefaultNonlinearConfig()); err == nil {
		t.Error("nil embedding: expected error")
	}
	emb := NewMatrix(5, 3)
	if _, err := EmbedNonlinear(emb, NonlinearConfig{OutDims: -1}); err == nil {
		t.Error("negative OutDims: expected error")
	}
	if _, err := EmbedNonlinear(emb, NonlinearConfig{Epochs: -1}); err == nil {
		t.Error("negative Epochs: expected error")
	}
	if _, err := EmbedNonlinear(emb, NonlinearConfig{NegativeRate: -1}); err == nil {
		t.Error("negative NegativeRate: expected error")
	}
}
