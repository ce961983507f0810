package kconfig

import (
	"context"
	"fmt"
)

// DefaultMaxIterations bounds the rule-and-solve loop. Three passes cover
// the dependency depth of every rule set shipped so far; deeper chains need
// a larger budget from config.
const DefaultMaxIterations = 3

// UnconvergedError reports that the iteration budget ran out before a pass
// produced zero rewrites. It carries the last state so the caller can decide
// whether a partially-resolved configuration fails the pipeline.
type UnconvergedError struct {
	Config     *ConfigSet
	Remaining  []string
	Iterations int
}

func (e *UnconvergedError) Error() string {
	return fmt.Sprintf("kconfig: %d option(s) still unset after %d iteration(s): %v",
		len(e.Remaining), e.Iterations, e.Remaining)
}

// Resolve merges base and overrides, expands dependent options through the
// solver, then repeatedly rewrites rule-matched unset options and re-solves
// until a pass produces zero rewrites (the fixed point) or the iteration
// budget is exhausted. Enabling one option routinely exposes dependent
// options that are only listed as "not set" once their prerequisite is on,
// so a single pass is not enough.
func Resolve(ctx context.Context, base, overrides *ConfigSet, rules RuleSet, solver Solver, maxIterations int) (*ConfigSet, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	merged := Merge(base, overrides)
	if err := solver.Expand(ctx, merged); err != nil {
		return nil, err
	}

	iterations := 0
	for ; iterations < maxIterations; iterations++ {
		matches := rules.UnsetMatches(merged)
		if len(matches) == 0 {
			return merged, nil
		}
		for _, name := range matches {
			merged.Enable(name)
		}
		if err := solver.Expand(ctx, merged); err != nil {
			return nil, err
		}
	}

	// Budget exhausted: the last solve may have settled everything, in
	// which case one more pass would rewrite nothing and the fixed point
	// holds. Otherwise surface the partial state instead of returning it
	// as if resolved.
	remaining := rules.UnsetMatches(merged)
	if len(remaining) == 0 {
		return merged, nil
	}
	return nil, &UnconvergedError{
		Config:     merged,
		Remaining:  remaining,
		Iterations: iterations,
	}
}
