package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAckToken is the creation acknowledgement an HTTP artifact store
// must return verbatim for a publish to count as successful.
const DefaultAckToken = "201: created"

// HTTPStore talks to a plain HTTP artifact store: GET returns bytes or
// not-found, PUT must be answered with the exact creation acknowledgement.
type HTTPStore struct {
	Base     string // base URL, no trailing slash
	AckToken string
	Headers  map[string]string
	Client   *http.Client
}

// NewHTTPStore creates a store client for the given base URL.
func NewHTTPStore(base string) *HTTPStore {
	return &HTTPStore{
		Base:     strings.TrimRight(base, "/"),
		AckToken: DefaultAckToken,
		Client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

// Location returns the full URL for a key.
func (s *HTTPStore) Location(key Key) string {
	return s.Base + "/" + key.ObjectPath()
}

// Fetch GETs the payload at the key's location.
func (s *HTTPStore) Fetch(ctx context.Context, key Key) ([]byte, error) {
	url := s.Location(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("GET %s: %w", url, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, truncateBody(body, 512))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", url, err)
	}
	return payload, nil
}

// Publish PUTs the payload and checks the creation acknowledgement verbatim.
// A 2xx without the token is still a failure — deliberately stricter than
// HTTP status semantics.
func (s *HTTPStore) Publish(ctx context.Context, key Key, payload []byte) error {
	url := s.Location(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(payload))

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), s.AckToken) {
		return &AckError{
			Location: url,
			Status:   resp.StatusCode,
			Body:     truncateBody(body, 256),
		}
	}
	return nil
}

func (s *HTTPStore) setHeaders(req *http.Request) {
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
}

func truncateBody(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
