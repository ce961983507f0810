// Package buildgate decides, per artifact key, whether a kernel build is
// needed, and orchestrates source acquisition, configuration resolution,
// the external builder, and artifact publication.
package buildgate

import (
	"errors"
	"fmt"

	"github.com/sofmeright/kfreight/src/artifact"
	"github.com/sofmeright/kfreight/src/sources"
)

// CompileError reports that the external builder terminated non-zero. It is
// a code or configuration defect: fatal and never retried.
type CompileError struct {
	Key    artifact.Key
	Detail string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("buildgate: compiling %s: %s: %v", e.Key, e.Detail, e.Err)
	}
	return fmt.Sprintf("buildgate: compiling %s: %v", e.Key, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// PublishError reports a publish whose transfer completed without the
// store's creation acknowledgement. Fatal for this run: the build is not
// redone in the same invocation, but the cache key was never advanced, so
// the next run rebuilds from scratch instead of short-circuiting on a
// half-published artifact.
type PublishError struct {
	Key artifact.Key
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("buildgate: publishing %s: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator may retry the whole
// EnsureArtifact call. Source and transport faults are retryable; compile
// and acknowledgement failures must fail loudly.
func Retryable(err error) bool {
	var compileErr *CompileError
	var publishErr *PublishError
	if errors.As(err, &compileErr) || errors.As(err, &publishErr) {
		return false
	}
	var fetchErr *sources.FetchError
	if errors.As(err, &fetchErr) {
		return true
	}
	// Remaining faults are store/transport level.
	return err != nil
}
