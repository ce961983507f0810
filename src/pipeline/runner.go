package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Runner executes a stage graph. Stages whose prerequisites have all
// succeeded run concurrently, bounded by Parallel.
type Runner struct {
	Stages   []Stage
	Parallel int64

	// OnStart and OnFinish, when set, observe stage lifecycle for output.
	OnStart  func(Stage)
	OnFinish func(Stage, Result)
}

// Run executes the graph to completion. Every stage ends in exactly one
// terminal status; a failed stage marks its non-AlwaysRun dependents
// skipped rather than aborting the whole run, so independent matrix
// entries still finish. The returned error is the first stage failure,
// nil when all stages succeeded or were skipped.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	if err := validate(r.Stages); err != nil {
		return nil, err
	}
	parallel := r.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	byID := make(map[string]*Stage, len(r.Stages))
	for i := range r.Stages {
		byID[r.Stages[i].ID] = &r.Stages[i]
	}

	var mu sync.Mutex
	done := make(map[string]Status, len(r.Stages))
	results := make(map[string]Result, len(r.Stages))

	// ready decides, under mu, whether a stage can start and how: run it,
	// skip it, or wait for more prerequisites to finish.
	type disposition int
	const (
		wait disposition = iota
		run
		skip
	)
	ready := func(s *Stage) disposition {
		for _, need := range s.Needs {
			st, finished := done[need]
			if !finished {
				return wait
			}
			switch st {
			case StatusSuccess:
				// fine
			case StatusFailed:
				if !s.AlwaysRun {
					return skip
				}
			case StatusSkipped:
				return skip
			}
		}
		return run
	}

	sem := semaphore.NewWeighted(parallel)
	var firstErr error

	// Wave scheduling: each pass launches everything currently runnable,
	// waits for the wave, and repeats until no stage is pending.
	for len(done) < len(r.Stages) {
		var wave []*Stage
		mu.Lock()
		for i := range r.Stages {
			s := &r.Stages[i]
			if _, finished := done[s.ID]; finished {
				continue
			}
			switch ready(s) {
			case run:
				wave = append(wave, s)
			case skip:
				done[s.ID] = StatusSkipped
				results[s.ID] = Result{Stage: s.ID, Status: StatusSkipped}
				if r.OnFinish != nil {
					r.OnFinish(*s, results[s.ID])
				}
			}
		}
		mu.Unlock()
		if len(wave) == 0 {
			// Nothing runnable and nothing newly skipped would be a
			// scheduler bug; skips loop back around, so only re-check.
			settled := true
			mu.Lock()
			for i := range r.Stages {
				if _, finished := done[r.Stages[i].ID]; !finished {
					if ready(&r.Stages[i]) != wait {
						settled = false
					}
				}
			}
			pending := len(done) < len(r.Stages)
			mu.Unlock()
			if pending && settled {
				return nil, fmt.Errorf("pipeline: stalled with unfinished stages")
			}
			continue
		}

		var wg sync.WaitGroup
		for _, s := range wave {
			if err := sem.Acquire(ctx, 1); err != nil {
				// Context gone: mark the rest of the wave skipped and bail.
				mu.Lock()
				for _, rest := range wave {
					if _, finished := done[rest.ID]; !finished {
						done[rest.ID] = StatusSkipped
						results[rest.ID] = Result{Stage: rest.ID, Status: StatusSkipped, Err: err}
					}
				}
				mu.Unlock()
				wg.Wait()
				return collect(r.Stages, results), err
			}
			wg.Add(1)
			go func(s *Stage) {
				defer wg.Done()
				defer sem.Release(1)

				if r.OnStart != nil {
					r.OnStart(*s)
				}
				start := time.Now()
				err := s.Run(ctx)
				res := Result{Stage: s.ID, Elapsed: time.Since(start)}
				if err != nil {
					res.Status = StatusFailed
					res.Err = fmt.Errorf("stage %s: %w", s.ID, err)
				} else {
					res.Status = StatusSuccess
				}

				mu.Lock()
				done[s.ID] = res.Status
				results[s.ID] = res
				if err != nil && firstErr == nil {
					firstErr = res.Err
				}
				mu.Unlock()
				if r.OnFinish != nil {
					r.OnFinish(*s, res)
				}
			}(s)
		}
		wg.Wait()
	}

	return collect(r.Stages, results), firstErr
}

// collect orders results by declaration order for stable reporting.
func collect(stages []Stage, results map[string]Result) []Result {
	out := make([]Result, 0, len(stages))
	for _, s := range stages {
		if res, ok := results[s.ID]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results that ended in failure.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Summary renders a compact status line, stages grouped by status.
func Summary(results []Result) string {
	counts := map[Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", counts[Status(k)], k)
	}
	return out
}
