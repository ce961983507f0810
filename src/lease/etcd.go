package lease

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/sofmeright/kfreight/src/artifact"
)

const leasePrefix = "/kfreight/build/"

// Etcd holds build leases in etcd so builders on different runners agree on
// at-most-one-builder-per-key. Leases are TTL-bounded: a crashed builder's
// lease expires instead of wedging the key forever.
type Etcd struct {
	client *clientv3.Client
	ttl    time.Duration
}

// NewEtcd connects to the given endpoints.
func NewEtcd(endpoints []string, ttl time.Duration) (*Etcd, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("lease: etcd endpoints are required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("lease: connecting to etcd: %w", err)
	}
	return &Etcd{client: client, ttl: ttl}, nil
}

// Acquire takes the distributed mutex for the key. The session keeps the
// lease alive while the build runs; release closes it, dropping the lock
// even if the unlock itself fails.
func (e *Etcd) Acquire(ctx context.Context, key artifact.Key) (func(), error) {
	session, err := concurrency.NewSession(e.client,
		concurrency.WithContext(ctx),
		concurrency.WithTTL(int(e.ttl.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("lease: creating session: %w", err)
	}

	mutex := concurrency.NewMutex(session, leasePrefix+key.String())
	if err := mutex.Lock(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("lease: locking %s: %w", key, err)
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mutex.Unlock(unlockCtx)
		session.Close()
	}
	return release, nil
}

// Close shuts down the etcd client.
func (e *Etcd) Close() error {
	return e.client.Close()
}
