// Package pipeline executes dependency-ordered stages with bounded
// parallelism, fail-fast skipping, and always-run aggregation stages.
package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Status is a stage's terminal state.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage is one unit of pipeline work.
type Stage struct {
	ID    string
	Name  string
	Needs []string

	// AlwaysRun stages execute whenever every prerequisite actually ran,
	// even if it failed. Aggregation uses this: error and failure counts
	// must surface even when the test stage comes back red. A skipped
	// prerequisite still skips an AlwaysRun stage — there is no output to
	// aggregate.
	AlwaysRun bool

	Run func(ctx context.Context) error
}

// Result is one stage's outcome.
type Result struct {
	Stage   string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// validate checks the stage graph: unique IDs, known dependencies, no
// cycles.
func validate(stages []Stage) error {
	byID := make(map[string]*Stage, len(stages))
	for i := range stages {
		s := &stages[i]
		if s.ID == "" {
			return fmt.Errorf("pipeline: stage %d has no id", i)
		}
		if _, dup := byID[s.ID]; dup {
			return fmt.Errorf("pipeline: duplicate stage id %q", s.ID)
		}
		byID[s.ID] = s
	}

	for _, s := range byID {
		for _, need := range s.Needs {
			if _, ok := byID[need]; !ok {
				return fmt.Errorf("pipeline: stage %q needs unknown stage %q", s.ID, need)
			}
		}
	}

	// Cycle check via iterative DFS coloring.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(byID))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("pipeline: dependency cycle through stage %q", id)
		case black:
			return nil
		}
		color[id] = gray
		for _, need := range byID[id].Needs {
			if err := visit(need); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for id := range byID {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
