package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPStore_FetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	_, err := store.Fetch(context.Background(), Key{Version: "6.11", Arch: "x86_64"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPStore_FetchReturnsPayload(t *testing.T) {
	payload := []byte("kernel bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/kernels/6.11/x86_64/bzImage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write(payload)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	got, err := store.Fetch(context.Background(), Key{Version: "6.11", Arch: "x86_64"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestHTTPStore_PublishRequiresAckToken(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantAck bool // true = publish succeeds
	}{
		{"exact token", http.StatusCreated, "201: created", true},
		{"token embedded", http.StatusCreated, "ok\n201: created\n", true},
		{"2xx without token", http.StatusOK, "stored", false},
		{"empty 201", http.StatusCreated, "", false},
		{"generic success text", http.StatusOK, "created", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("method = %s, want PUT", r.Method)
				}
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			store := NewHTTPStore(srv.URL)
			err := store.Publish(context.Background(), Key{Version: "6.11", Arch: "x86_64"}, []byte("image"))

			if tc.wantAck {
				if err != nil {
					t.Fatalf("Publish: %v", err)
				}
				return
			}

			var ackErr *AckError
			if !errors.As(err, &ackErr) {
				t.Fatalf("expected *AckError, got %v", err)
			}
		})
	}
}

func TestRetrying_DoesNotRetryAckFailures(t *testing.T) {
	var puts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		puts.Add(1)
		w.WriteHeader(http.StatusOK) // no ack token
	}))
	defer srv.Close()

	store := &Retrying{Store: NewHTTPStore(srv.URL), Attempts: 3, Backoff: time.Millisecond}
	err := store.Publish(context.Background(), Key{Version: "6.11", Arch: "x86_64"}, []byte("image"))

	var ackErr *AckError
	if !errors.As(err, &ackErr) {
		t.Fatalf("expected *AckError, got %v", err)
	}
	if n := puts.Load(); n != 1 {
		t.Fatalf("publish attempted %d times, want 1 (ack failures are not retryable)", n)
	}
}

func TestRetrying_RetriesTransientFetchFaults(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gets.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("kernel"))
	}))
	defer srv.Close()

	store := &Retrying{Store: NewHTTPStore(srv.URL), Attempts: 2, Backoff: time.Millisecond}
	got, err := store.Fetch(context.Background(), Key{Version: "6.11", Arch: "x86_64"})
	if err != nil {
		t.Fatalf("Fetch after retries: %v", err)
	}
	if string(got) != "kernel" {
		t.Fatalf("payload = %q", got)
	}
	if n := gets.Load(); n != 3 {
		t.Fatalf("fetched %d times, want 3", n)
	}
}

func TestRetrying_NotFoundPassesThrough(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := &Retrying{Store: NewHTTPStore(srv.URL), Attempts: 2, Backoff: time.Millisecond}
	_, err := store.Fetch(context.Background(), Key{Version: "6.11", Arch: "x86_64"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := gets.Load(); n != 1 {
		t.Fatalf("fetched %d times, want 1 (not-found is an answer, not a fault)", n)
	}
}
