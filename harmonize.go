package banksy

import (
	"fmt"
)

// HarmonizeOptions controls [Harmonize].
type HarmonizeOptions struct {
	// Reference is the index of the designated reference labeling; every
	// other labeling is matched directly against it. -1 selects chain
	// mode: each labeling is matched against the previously processed one
	// in the supplied order.
	Reference int

	// MinOverlap is the minimum fraction of cells that must land in
	// matched cluster pairs for the match to be accepted. Below it the
	// labeling keeps its original IDs and a note is recorded. 0 accepts
	// any nonzero overlap.
	MinOverlap float64
}

// HarmonizeReport records the reference used and any warning-level notes
// produced while harmonizing.
type HarmonizeReport struct {
	// Reference is the index passed in (-1 for chain mode).
	Reference int
	// Notes holds one entry per labeling whose match target had no
	// acceptable overlap; those labelings were left untouched.
	Notes []string
}

// Harmonize relabels cluster IDs across labelings so matching clusters
// share IDs, mutating label values in place. Reference labels are never
// renumbered. Clusters with no acceptable counterpart in the match target
// receive fresh IDs strictly greater than the target's maximum ID, in
// ascending order of their original ID, so harmonization is idempotent:
// re-running against the same reference changes nothing.
func Harmonize(labelings [][]int, opts HarmonizeOptions) (*HarmonizeReport, error) {
	if len(labelings) == 0 {
		return nil, fmt.Errorf("banksy: no labelings to harmonize")
	}
	n := len(labelings[0])
	for i, l := range labelings {
		if len(l) != n {
			return nil, fmt.Errorf("banksy: labeling %d has %d cells, labeling 0 has %d", i, len(l), n)
		}
		for c, v := range l {
			if v < 0 {
				return nil, fmt.Errorf("banksy: labeling %d has negative label %d at cell %d", i, v, c)
			}
		}
	}
	if opts.Reference < -1 || opts.Reference >= len(labelings) {
		return nil, fmt.Errorf("banksy: reference index %d out of range", opts.Reference)
	}
	if opts.MinOverlap < 0 || opts.MinOverlap > 1 {
		return nil, fmt.Errorf("banksy: MinOverlap must be in [0,1], got %g", opts.MinOverlap)
	}

	report := &HarmonizeReport{Reference: opts.Reference}
	if opts.Reference >= 0 {
		ref := labelings[opts.Reference]
		for i, l := range labelings {
			if i == opts.Reference {
				continue
			}
			if !matchLabeling(ref, l, opts.MinOverlap) {
				report.Notes = append(report.Notes,
					fmt.Sprintf("labeling %d: no acceptable overlap with reference %d, labels left unchanged", i, opts.Reference))
			}
		}
		return report, nil
	}

	// Chain mode: each labeling matches the previously processed one.
	for i := 1; i < len(labelings); i++ {
		if !matchLabeling(labelings[i-1], labelings[i], opts.MinOverlap) {
			report.Notes = append(report.Notes,
				fmt.Sprintf("labeling %d: no acceptable overlap with labeling %d, labels left unchanged", i, i-1))
		}
	}
	return report, nil
}

// matchLabeling relabels tgt against ref in place. Returns false when the
// overlap was unacceptable and tgt was left untouched.
func matchLabeling(ref, tgt []int, minOverlap float64) bool {
	n := len(ref)
	if n == 0 {
		return true
	}

	maxRef, maxTgt := 0, 0
	for i := 0; i < n; i++ {
		if ref[i] > maxRef {
			maxRef = ref[i]
		}
		if tgt[i] > maxTgt {
			maxTgt = tgt[i]
		}
	}
	ka := maxRef + 1 // reference label space
	kb := maxTgt + 1 // target label space

	counts := make([]int, ka*kb)
	present := make([]bool, kb)
	for i := 0; i < n; i++ {
		counts[ref[i]*kb+tgt[i]]++
		present[tgt[i]] = true
	}

	// Best one-to-one assignment maximizing total overlap: Hungarian on
	// negated counts over the padded square matrix.
	m := ka
	if kb > m {
		m = kb
	}
	cost := make([]float64, m*m)
	for b := 0; b < kb; b++ {
		for a := 0; a < ka; a++ {
			cost[b*m+a] = -float64(counts[a*kb+b])
		}
	}
	// Overlap counts are integers, so a diagonal bonus totaling under 1
	// can never beat a strictly larger overlap; among tied optima it
	// selects the identity mapping, keeping an already-matched labeling
	// fixed under a re-run.
	bonus := 1.0 / float64(2*m)
	for d := 0; d < m; d++ {
		cost[d*m+d] -= bonus
	}
	assignment := assignMin(cost, m)

	// Fresh IDs go only to labels that actually occur; holes in the
	// target label space must not shift the numbering, or a second run
	// would renumber already-fresh clusters.
	mapping := make([]int, kb)
	matchedCells := 0
	nextFresh := ka
	for b := 0; b < kb; b++ {
		if !present[b] {
			mapping[b] = -1
			continue
		}
		a := assignment[b]
		if a < ka && counts[a*kb+b] > 0 {
			mapping[b] = a
			matchedCells += counts[a*kb+b]
		} else {
			mapping[b] = nextFresh
			nextFresh++
		}
	}

	if matchedCells == 0 {
		return false
	}
	if minOverlap > 0 && float64(matchedCells)/float64(n) < minOverlap {
		return false
	}

	for i := 0; i < n; i++ {
		tgt[i] = mapping[tgt[i]]
	}
	return true
}
