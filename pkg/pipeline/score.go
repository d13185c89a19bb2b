package pipeline

import (
	"fmt"

	"github.com/wildseas/finprint/pkg/identify"
)

// ScoreQueries matches a batch of extraction results against the
// reference index set and sums the per-subject LNBNN scores entrywise.
// Failed subjects contribute nothing; scored reports how many subjects
// were matched. The score map always carries every identity in the
// reference, zero-initialized, and lower scores mean stronger matches.
//
// k must be smaller than the smallest per-scale reference row count;
// that is a configuration error and is checked before any query runs.
func ScoreQueries(set *identify.IndexSet, results []Result, k int) (scores identify.ScoreMap, scored int, err error) {
	if k < 1 {
		return nil, 0, fmt.Errorf("pipeline: k must be at least 1, got %d", k)
	}
	if min := set.MinRows(); k >= min {
		return nil, 0, fmt.Errorf("pipeline: k=%d needs more than %d reference rows per scale", k, min)
	}

	scores = make(identify.ScoreMap)
	for _, label := range set.Identities() {
		scores[label] = 0
	}
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		part, err := set.Score(r.Descriptors, k)
		if err != nil {
			return nil, 0, fmt.Errorf("pipeline: subject %s: %w", r.Subject, err)
		}
		scores.Merge(part)
		scored++
	}
	return scores, scored, nil
}
