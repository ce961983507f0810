// Package lease provides per-artifact-key admission locks so overlapping
// pipeline runs do not build the same kernel twice. The store's publish
// acknowledgement remains the correctness safety net; the lease only avoids
// duplicate work.
package lease

import (
	"context"
	"sync"

	"github.com/sofmeright/kfreight/src/artifact"
)

// Locker grants exclusive build admission for one artifact key. Acquire
// blocks until the lease is held or the context is done; the returned
// release function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key artifact.Key) (release func(), err error)
}

// Nop grants every acquisition immediately. It preserves the historical
// racy behavior for deployments that accept duplicate concurrent builds.
type Nop struct{}

func (Nop) Acquire(context.Context, artifact.Key) (func(), error) {
	return func() {}, nil
}

// Local serializes builds per key within a single process: matrix entries
// that share a key (forced rebuilds, overlapping version lists) queue up
// instead of racing.
type Local struct {
	mu    sync.Mutex
	locks map[artifact.Key]*keyLock
}

type keyLock struct {
	ch   chan struct{} // capacity 1; holding the token = holding the lease
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: map[artifact.Key]*keyLock{}}
}

func (l *Local) Acquire(ctx context.Context, key artifact.Key) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.put(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-kl.ch
			l.put(key, kl)
		})
	}
	return release, nil
}

func (l *Local) put(key artifact.Key, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
