package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func statusOf(t *testing.T, results []Result, id string) Status {
	t.Helper()
	for _, r := range results {
		if r.Stage == id {
			return r.Status
		}
	}
	t.Fatalf("no result for stage %q", id)
	return ""
}

func ok(context.Context) error   { return nil }
func boom(context.Context) error { return errors.New("boom") }

func TestRun_TopologicalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(id string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	r := &Runner{
		Parallel: 4,
		Stages: []Stage{
			{ID: "test", Needs: []string{"build"}, Run: record("test")},
			{ID: "build", Needs: []string{"fetch"}, Run: record("build")},
			{ID: "fetch", Run: record("fetch")},
		},
	}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	want := []string{"fetch", "build", "test"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestRun_FailureSkipsDependents(t *testing.T) {
	r := &Runner{
		Stages: []Stage{
			{ID: "build", Run: boom},
			{ID: "test", Needs: []string{"build"}, Run: ok},
			{ID: "report", Needs: []string{"test"}, Run: ok},
		},
	}
	results, err := r.Run(context.Background())
	if err == nil {
		t.Fatalf("expected failure to surface")
	}
	if statusOf(t, results, "build") != StatusFailed {
		t.Fatalf("build status = %v", statusOf(t, results, "build"))
	}
	if statusOf(t, results, "test") != StatusSkipped {
		t.Fatalf("test status = %v", statusOf(t, results, "test"))
	}
	if statusOf(t, results, "report") != StatusSkipped {
		t.Fatalf("report status = %v", statusOf(t, results, "report"))
	}
}

func TestRun_AlwaysRunExecutesAfterFailure(t *testing.T) {
	var aggregated atomic.Bool
	r := &Runner{
		Stages: []Stage{
			{ID: "test", Run: boom},
			{ID: "aggregate", Needs: []string{"test"}, AlwaysRun: true, Run: func(context.Context) error {
				aggregated.Store(true)
				return nil
			}},
		},
	}
	results, err := r.Run(context.Background())
	if err == nil {
		t.Fatalf("test stage failure should surface")
	}
	if !aggregated.Load() {
		t.Fatalf("aggregation did not run after failed prerequisite")
	}
	if statusOf(t, results, "aggregate") != StatusSuccess {
		t.Fatalf("aggregate status = %v", statusOf(t, results, "aggregate"))
	}
}

func TestRun_AlwaysRunSkippedWhenPrerequisiteNeverRan(t *testing.T) {
	r := &Runner{
		Stages: []Stage{
			{ID: "build", Run: boom},
			{ID: "test", Needs: []string{"build"}, Run: ok},
			{ID: "aggregate", Needs: []string{"test"}, AlwaysRun: true, Run: ok},
		},
	}
	results, _ := r.Run(context.Background())
	// test never produced output, so there is nothing to aggregate.
	if statusOf(t, results, "aggregate") != StatusSkipped {
		t.Fatalf("aggregate status = %v, want skipped", statusOf(t, results, "aggregate"))
	}
}

func TestRun_IndependentStagesRunConcurrently(t *testing.T) {
	// Two stages that each wait for the other to start only complete if
	// they actually overlap.
	aStarted := make(chan struct{})
	bStarted := make(chan struct{})
	r := &Runner{
		Parallel: 2,
		Stages: []Stage{
			{ID: "a", Run: func(ctx context.Context) error {
				close(aStarted)
				select {
				case <-bStarted:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}},
			{ID: "b", Run: func(ctx context.Context) error {
				close(bStarted)
				select {
				case <-aStarted:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}},
		},
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_ParallelismIsBounded(t *testing.T) {
	var cur, peak atomic.Int64
	work := func(context.Context) error {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		cur.Add(-1)
		return nil
	}
	stages := make([]Stage, 8)
	for i := range stages {
		stages[i] = Stage{ID: string(rune('a' + i)), Run: work}
	}
	r := &Runner{Parallel: 2, Stages: stages}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("observed %d concurrent stages, limit 2", peak.Load())
	}
}

func TestRun_RejectsCycles(t *testing.T) {
	r := &Runner{
		Stages: []Stage{
			{ID: "a", Needs: []string{"b"}, Run: ok},
			{ID: "b", Needs: []string{"a"}, Run: ok},
		},
	}
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestRun_RejectsUnknownDependency(t *testing.T) {
	r := &Runner{
		Stages: []Stage{{ID: "a", Needs: []string{"ghost"}, Run: ok}},
	}
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected unknown dependency error")
	}
}

func TestSummary(t *testing.T) {
	s := Summary([]Result{
		{Status: StatusSuccess},
		{Status: StatusSuccess},
		{Status: StatusFailed},
		{Status: StatusSkipped},
	})
	if s != "1 failed, 1 skipped, 2 success" {
		t.Fatalf("Summary = %q", s)
	}
}
