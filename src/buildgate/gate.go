package buildgate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sofmeright/kfreight/src/artifact"
	"github.com/sofmeright/kfreight/src/kconfig"
	"github.com/sofmeright/kfreight/src/lease"
)

// SourceProvider yields a prepared source tree for a kernel version.
type SourceProvider interface {
	SrcDir(ctx context.Context, version string) (string, error)
}

// SourceProviderFunc adapts a function to SourceProvider.
type SourceProviderFunc func(ctx context.Context, version string) (string, error)

func (f SourceProviderFunc) SrcDir(ctx context.Context, version string) (string, error) {
	return f(ctx, version)
}

// ConfigResolver produces the resolved configuration for a build. It gets
// the source tree because the external dependency solver runs against it.
type ConfigResolver func(ctx context.Context, srcDir string, key artifact.Key) (*kconfig.ConfigSet, error)

// Gate is the idempotent build gate: identical keys never trigger redundant
// work, and only payloads that sniff as kernel images count as cache hits.
type Gate struct {
	Store    artifact.Store
	Sources  SourceProvider
	Resolver ConfigResolver
	Builder  Builder
	Locker   lease.Locker
	Jobs     int

	// Force rebuilds even when the cache holds a valid image. The lease is
	// still taken, but the post-lease re-check is skipped: a forced build
	// means "replace whatever is there".
	Force bool

	Verbose bool
	Stderr  io.Writer
}

// EnsureArtifact returns a valid kernel image artifact for the key,
// building and publishing one only when the cache cannot vouch for it.
func (g *Gate) EnsureArtifact(ctx context.Context, key artifact.Key) (*artifact.Artifact, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if !g.Force {
		if a, ok, err := g.lookup(ctx, key); err != nil {
			return nil, err
		} else if ok {
			return a, nil
		}
	}

	locker := g.Locker
	if locker == nil {
		locker = lease.Nop{}
	}
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("buildgate: acquiring build lease for %s: %w", key, err)
	}
	defer release()

	// Another builder may have published while we waited on the lease.
	if !g.Force {
		if a, ok, err := g.lookup(ctx, key); err != nil {
			return nil, err
		} else if ok {
			return a, nil
		}
	}

	return g.build(ctx, key)
}

// lookup fetches and sniffs the cached payload. The location string is
// never trusted; only a payload that sniffs as a kernel image is a hit.
func (g *Gate) lookup(ctx context.Context, key artifact.Key) (*artifact.Artifact, bool, error) {
	payload, err := g.Store.Fetch(ctx, key)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	if kind := artifact.Sniff(payload); kind != artifact.KindKernelImage {
		g.logf("cache payload at %s is %s, rebuilding", g.Store.Location(key), kind)
		return nil, false, nil
	}

	return &artifact.Artifact{
		Key:      key,
		Location: g.Store.Location(key),
		Kind:     artifact.KindKernelImage,
		Size:     int64(len(payload)),
	}, true, nil
}

func (g *Gate) build(ctx context.Context, key artifact.Key) (*artifact.Artifact, error) {
	srcDir, err := g.Sources.SrcDir(ctx, key.Version)
	if err != nil {
		return nil, err
	}

	cfg, err := g.Resolver(ctx, srcDir, key)
	if err != nil {
		return nil, err
	}

	payload, err := g.Builder.Build(ctx, srcDir, key, cfg, g.Jobs)
	if err != nil {
		return nil, err
	}
	if kind := artifact.Sniff(payload); kind != artifact.KindKernelImage {
		// Publishing an unrecognizable payload would poison nothing (the
		// sniff gate rejects it on the next run) but wastes a store write
		// and hides the defect until then.
		return nil, &CompileError{Key: key, Err: fmt.Errorf("builder produced %s payload", kind)}
	}

	if err := g.Store.Publish(ctx, key, payload); err != nil {
		var ackErr *artifact.AckError
		if errors.As(err, &ackErr) {
			return nil, &PublishError{Key: key, Err: err}
		}
		return nil, err
	}

	return &artifact.Artifact{
		Key:      key,
		Location: g.Store.Location(key),
		Kind:     artifact.KindKernelImage,
		Size:     int64(len(payload)),
	}, nil
}

func (g *Gate) logf(format string, args ...any) {
	if !g.Verbose || g.Stderr == nil {
		return
	}
	fmt.Fprintf(g.Stderr, "buildgate: "+format+"\n", args...)
}
