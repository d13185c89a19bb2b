package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ExtractBatch runs Extract over the subjects with a worker pool and
// returns one Result per subject, in input order.
//
// Subjects are independent: a soft failure or internal error in one
// never aborts its siblings. Cancellation is cooperative and checked
// between subjects; subjects never started are marked StageCanceled and
// the context error is returned alongside the partial results. Internal
// errors are joined into the returned error after the whole batch has
// been attempted.
func (e *Extractor) ExtractBatch(ctx context.Context, subjects []Subject, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(subjects) {
		workers = len(subjects)
	}

	results := make([]Result, len(subjects))
	errs := make([]error, len(subjects))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := e.Extract(ctx, subjects[i])
				if err != nil {
					res = fail(subjects[i].ID, StageInternal, err.Error())
					errs[i] = fmt.Errorf("pipeline: subject %s: %w", subjects[i].ID, err)
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range subjects {
		select {
		case <-ctx.Done():
			for j := i; j < len(subjects); j++ {
				results[j] = fail(subjects[j].ID, StageCanceled, ctx.Err().Error())
			}
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	ok := 0
	for i := range results {
		if results[i].OK() {
			ok++
		}
	}
	e.log.Info("batch extracted",
		"subjects", len(subjects), "ok", ok, "failed", len(subjects)-ok)

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}
