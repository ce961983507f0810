package results

import "fmt"

// Policy controls how workload failures affect the pipeline. Errors are
// not configurable: infrastructure breakage always blocks, because "the
// harness broke" must never read as "tests ran and some failed".
type Policy struct {
	// FailuresBlock makes assertion failures halt downstream stages.
	// When false, failures are surfaced for visibility only.
	FailuresBlock bool
}

// Verdict is the aggregated outcome of all test runs.
type Verdict struct {
	TotalErrors   int
	TotalFailures int
	Blocking      bool
}

// Aggregate sums reports and applies the blocking policy.
func Aggregate(reports []Report, policy Policy) Verdict {
	var v Verdict
	for _, r := range reports {
		v.TotalErrors += r.Errors
		v.TotalFailures += r.Failures
	}
	v.Blocking = v.TotalErrors > 0 || (policy.FailuresBlock && v.TotalFailures > 0)
	return v
}

// Clean reports a fully green verdict.
func (v Verdict) Clean() bool {
	return v.TotalErrors == 0 && v.TotalFailures == 0
}

// ExitCode maps the verdict to a process exit status, preserving the
// historical count-as-exit-code convention: the code equals the error
// count when any error occurred, otherwise the failure count (0 = clean).
// Callers treating "exit code > 1" as an infra-level error must special-
// case this: a clean run with 3 assertion failures exits 3. Tooling that
// wants conventional any-nonzero-is-error semantics should read the
// structured Verdict instead.
func (v Verdict) ExitCode() int {
	if v.TotalErrors > 0 {
		return v.TotalErrors
	}
	return v.TotalFailures
}

// String renders a one-line human summary.
func (v Verdict) String() string {
	switch {
	case v.Clean():
		return "clean"
	case v.Blocking:
		return fmt.Sprintf("blocking: %d error(s), %d failure(s)", v.TotalErrors, v.TotalFailures)
	default:
		return fmt.Sprintf("non-blocking: %d failure(s)", v.TotalFailures)
	}
}
