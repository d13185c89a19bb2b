package identify

import (
	"fmt"
	"sort"
)

// ScoreMap accumulates per-identity match evidence. Scores are zero or
// negative; more negative means a stronger match.
type ScoreMap map[string]float64

// Merge adds the other map's scores entrywise into m.
func (m ScoreMap) Merge(other ScoreMap) {
	for label, s := range other {
		m[label] += s
	}
}

// Ranked returns the identities ordered best match first, with ties
// broken by label for stable output.
func (m ScoreMap) Ranked() []string {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if m[labels[i]] != m[labels[j]] {
			return m[labels[i]] < m[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// LNBNN scores the query rows against one reference index using the
// local naive-Bayes nearest-neighbor rule. For each query row the k+1
// nearest reference rows are retrieved; the (k+1)-th distance normalizes
// the contribution, and each distinct identity among the first k
// contributes its closest distance minus the normalizer. The returned
// map carries every identity in the index, zero-initialized, so absent
// evidence reads as a zero score.
//
// k must be positive and strictly smaller than the number of reference
// rows, otherwise the normalizing neighbor does not exist.
func LNBNN(ix *Index, queries [][]float32, k int) (ScoreMap, error) {
	if k <= 0 {
		return nil, fmt.Errorf("identify: k must be positive, got %d", k)
	}
	if k >= ix.Len() {
		return nil, fmt.Errorf("identify: k=%d needs at least %d reference rows, index has %d", k, k+1, ix.Len())
	}

	scores := make(ScoreMap)
	for _, label := range ix.Identities() {
		scores[label] = 0
	}

	for i, q := range queries {
		nn, err := ix.Search(q, k+1)
		if err != nil {
			return nil, fmt.Errorf("identify: query row %d: %w", i, err)
		}
		if len(nn) < k+1 {
			return nil, fmt.Errorf("identify: query row %d returned %d neighbors, want %d", i, len(nn), k+1)
		}
		norm := float64(nn[k].Dist)
		best := make(map[string]float64, k)
		for _, n := range nn[:k] {
			d := float64(n.Dist)
			if cur, ok := best[n.Label]; !ok || d < cur {
				best[n.Label] = d
			}
		}
		for label, d := range best {
			scores[label] += d - norm
		}
	}
	return scores, nil
}

// Score runs [LNBNN] per scale over the query descriptors and sums the
// results. queries maps scale key to that scale's query rows; scales
// with no queries contribute nothing. Every identity in the index set
// appears in the result.
func (s *IndexSet) Score(queries map[string][][]float32, k int) (ScoreMap, error) {
	total := make(ScoreMap)
	for _, label := range s.Identities() {
		total[label] = 0
	}
	for _, scale := range s.scales {
		rows := queries[scale]
		if len(rows) == 0 {
			continue
		}
		part, err := LNBNN(s.indexes[scale], rows, k)
		if err != nil {
			return nil, fmt.Errorf("identify: scale %s: %w", scale, err)
		}
		total.Merge(part)
	}
	return total, nil
}
