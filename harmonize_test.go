package banksy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHarmonizePermutedLabels(t *testing.T) {
	ref := []int{0, 0, 1, 1, 2, 2}
	tgt := []int{2, 2, 0, 0, 1, 1}

	report, err := Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
	require.NoError(t, err)
	require.Empty(t, report.Notes)
	require.Equal(t, ref, tgt, "a pure permutation maps back onto the reference")
}

func TestHarmonizeReferenceUntouched(t *testing.T) {
	ref := []int{0, 1, 0, 1}
	refCopy := []int{0, 1, 0, 1}
	tgt := []int{1, 0, 1, 0}

	_, err := Harmonize([][]int{tgt, ref}, HarmonizeOptions{Reference: 1})
	require.NoError(t, err)
	require.Equal(t, refCopy, ref, "reference labels must never change")
	require.Equal(t, refCopy, tgt)
}

func TestHarmonizeFreshIDs(t *testing.T) {
	// Target has one cluster with no counterpart in the reference: it must
	// receive a fresh ID above the reference's maximum.
	ref := []int{0, 0, 0, 1, 1, 1}
	tgt := []int{0, 0, 2, 1, 1, 2}

	report, err := Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
	require.NoError(t, err)
	require.Empty(t, report.Notes)
	require.Equal(t, []int{0, 0, 2, 1, 1, 2}, tgt)
}

func TestHarmonizeIdempotent(t *testing.T) {
	ref := []int{0, 0, 1, 1, 2, 2, 2}
	tgt := []int{1, 1, 0, 0, 2, 2, 3}

	_, err := Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
	require.NoError(t, err)
	require.Equal(t, []int{0, 0, 1, 1, 2, 2, 3}, tgt)
	first := make([]int, len(tgt))
	copy(first, tgt)

	_, err = Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
	require.NoError(t, err)
	require.Equal(t, first, tgt, "a second run against the same reference is a no-op")
}

func TestHarmonizeTiedAssignment(t *testing.T) {
	// Every pairing overlaps equally; the tie must resolve to the
	// identity mapping so a re-run cannot renumber anything.
	ref := []int{0, 0, 1, 1}
	tgt := []int{0, 1, 0, 1}

	_, err := Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 0, 1}, tgt)
}

func TestHarmonizeIdempotentRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for trial := 0; trial < 200; trial++ {
		n := 20 + rng.Intn(40)
		ka := 2 + rng.Intn(6)
		kb := 2 + rng.Intn(6)
		ref := make([]int, n)
		tgt := make([]int, n)
		for i := 0; i < n; i++ {
			ref[i] = rng.Intn(ka)
			tgt[i] = rng.Intn(kb)
		}

		_, err := Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
		require.NoError(t, err)
		once := make([]int, n)
		copy(once, tgt)

		_, err = Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0})
		require.NoError(t, err)
		require.Equal(t, once, tgt, "trial %d: harmonizing twice changed labels", trial)
	}
}

func TestHarmonizeChainMode(t *testing.T) {
	a := []int{0, 0, 1, 1}
	b := []int{1, 1, 0, 0}
	c := []int{0, 0, 1, 1}

	report, err := Harmonize([][]int{a, b, c}, HarmonizeOptions{Reference: -1})
	require.NoError(t, err)
	require.Equal(t, -1, report.Reference)
	require.Empty(t, report.Notes)
	// b aligns to a; c then aligns to the relabeled b.
	require.Equal(t, a, b)
	require.Equal(t, a, c)
}

func TestHarmonizeMinOverlap(t *testing.T) {
	ref := []int{0, 0, 0, 0, 1, 1, 1, 1}
	// Half the cells land in matched pairs under the best assignment.
	tgt := []int{0, 0, 1, 1, 1, 1, 0, 0}
	orig := make([]int, len(tgt))
	copy(orig, tgt)

	report, err := Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0, MinOverlap: 0.9})
	require.NoError(t, err)
	require.Len(t, report.Notes, 1, "low overlap must be reported")
	require.Equal(t, orig, tgt, "labels stay untouched below the overlap floor")

	report, err = Harmonize([][]int{ref, tgt}, HarmonizeOptions{Reference: 0, MinOverlap: 0.3})
	require.NoError(t, err)
	require.Empty(t, report.Notes, "the same overlap passes a lower floor")
	for _, l := range tgt {
		require.Contains(t, []int{0, 1}, l, "matched clusters reuse reference IDs")
	}
}

func TestHarmonizeSingleLabeling(t *testing.T) {
	only := []int{0, 1, 0}
	report, err := Harmonize([][]int{only}, HarmonizeOptions{Reference: 0})
	require.NoError(t, err)
	require.Empty(t, report.Notes)
	require.Equal(t, []int{0, 1, 0}, only)
}

func TestHarmonizeErrors(t *testing.T) {
	_, err := Harmonize(nil, HarmonizeOptions{})
	require.Error(t, err, "no labelings")

	_, err = Harmonize([][]int{{0, 1}, {0}}, HarmonizeOptions{})
	require.Error(t, err, "length mismatch")

	_, err = Harmonize([][]int{{0, -1}}, HarmonizeOptions{})
	require.Error(t, err, "negative label")

	_, err = Harmonize([][]int{{0, 1}}, HarmonizeOptions{Reference: 5})
	require.Error(t, err, "reference out of range")

	_, err = Harmonize([][]int{{0, 1}}, HarmonizeOptions{Reference: -2})
	require.Error(t, err, "reference below -1")

	_, err = Harmonize([][]int{{0, 1}}, HarmonizeOptions{MinOverlap: 1.5})
	require.Error(t, err, "overlap above 1")
}
