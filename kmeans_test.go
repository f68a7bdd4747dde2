package banksy

import (
	"math/rand"
	"testing"
)

func TestKMeansTwoBlobs(t *testing.T) {
	g, truth := twoBlobGraph(t, 60, 10, 1)
	c := &KMeansClusterer{K: 2}

	res, err := c.Fit(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.NumClusters != 2 {
		t.Fatalf("NumClusters = %d, want 2", res.NumClusters)
	}
	if !agreesWithTruth(res.Labels, truth) {
		t.Fatal("labels do not separate the blobs")
	}
	if res.Objective > 0 {
		t.Errorf("objective = %v, want <= 0 (negated WCSS)", res.Objective)
	}
}

func TestKMeansDeterministic(t *testing.T) {
	g, _ := twoBlobGraph(t, 50, 8, 2)
	c := &KMeansClusterer{K: 3}

	a, err := c.Fit(g, 21)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Fit(g, 21)
	if err != nil {
		t.Fatal(err)
	}
	if !intsEqual(a.Labels, b.Labels) || a.Objective != b.Objective {
		t.Error("identical (graph, seed) produced different results")
	}
}

func TestKMeansClampsK(t *testing.T) {
	emb, _ := twoBlobEmbedding(t, 4, 2, 3)
	g, err := BuildSNNGraph(emb, 2, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	res, err := (&KMeansClusterer{K: 10}).Fit(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.NumClusters > 4 {
		t.Fatalf("NumClusters = %d with only 4 cells", res.NumClusters)
	}
}

func TestKMeansSingleCluster(t *testing.T) {
	g, _ := twoBlobGraph(t, 30, 6, 4)
	res, err := (&KMeansClusterer{K: 1}).Fit(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.NumClusters != 1 {
		t.Fatalf("NumClusters = %d, want 1", res.NumClusters)
	}
	for _, l := range res.Labels {
		if l != 0 {
			t.Fatalf("label = %d, want 0", l)
		}
	}
}

func TestKMeansErrors(t *testing.T) {
	g, _ := twoBlobGraph(t, 20, 5, 5)
	if _, err := (&KMeansClusterer{K: 0}).Fit(g, 1); err == nil {
		t.Error("K=0: expected error")
	}

	// Graph without an embedding cannot be centroid-clustered.
	bare := &SNNGraph{n: 3, indptr: make([]int, 4)}
	if _, err := (&KMeansClusterer{K: 2}).Fit(bare, 1); err == nil {
		t.Error("missing embedding: expected error")
	}
}

func TestKMeansPlusPlusSpreadsCentroids(t *testing.T) {
	emb, _ := twoBlobEmbedding(t, 40, 2, 6)
	rng := rand.New(rand.NewSource(13))
	centroids := kmeansPlusPlus(emb, 2, rng)

	// With two far-apart blobs, the two seeds should land in different
	// blobs: their distance must be of the order of the blob gap.
	d := euclideanSumOfSquares(centroids[0:2], centroids[2:4])
	if d < 100 {
		t.Fatalf("centroid separation^2 = %v, want blob-scale", d)
	}
}
