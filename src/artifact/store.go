package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that no payload exists at the key's location.
var ErrNotFound = errors.New("artifact: not found")

// AckError reports a publish that transferred but was not answered with the
// store's creation acknowledgement. A transfer without the ack is never a
// success: silent partial writes must not become cache hits downstream.
type AckError struct {
	Location string
	Status   int
	Body     string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("artifact: publish to %s not acknowledged (status %d, body %q)", e.Location, e.Status, e.Body)
}

// Store fetches and publishes opaque payloads at key-derived locations.
type Store interface {
	// Fetch returns the payload at the key's location, or ErrNotFound.
	Fetch(ctx context.Context, key Key) ([]byte, error)

	// Publish writes the payload and verifies the store's creation
	// acknowledgement. Returns *AckError when the transfer completed but
	// the ack was absent or wrong.
	Publish(ctx context.Context, key Key, payload []byte) error

	// Location returns the externally addressable location for a key.
	Location(key Key) string
}

// Retrying wraps a Store with bounded retry for transient transport faults.
// ErrNotFound and *AckError pass through untouched: a missing object is an
// answer, and a missing ack is a correctness failure that must fail loudly
// rather than be retried past a corrupted state.
type Retrying struct {
	Store    Store
	Attempts int
	Backoff  time.Duration
}

// NewRetrying returns a retrying wrapper with default bounds
// (2 extra attempts, short linear backoff).
func NewRetrying(s Store) *Retrying {
	return &Retrying{Store: s, Attempts: 2, Backoff: 500 * time.Millisecond}
}

func (r *Retrying) Fetch(ctx context.Context, key Key) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= r.Attempts; attempt++ {
		if err := r.wait(ctx, attempt); err != nil {
			return nil, err
		}
		payload, err := r.Store.Fetch(ctx, key)
		if err == nil || errors.Is(err, ErrNotFound) {
			return payload, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("artifact: fetch %s: %w", key, lastErr)
}

func (r *Retrying) Publish(ctx context.Context, key Key, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= r.Attempts; attempt++ {
		if err := r.wait(ctx, attempt); err != nil {
			return err
		}
		err := r.Store.Publish(ctx, key, payload)
		var ackErr *AckError
		if err == nil || errors.As(err, &ackErr) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("artifact: publish %s: %w", key, lastErr)
}

func (r *Retrying) Location(key Key) string {
	return r.Store.Location(key)
}

func (r *Retrying) wait(ctx context.Context, attempt int) error {
	if attempt == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt) * r.Backoff):
		return nil
	}
}
