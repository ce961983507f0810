package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// FetchError reports that a pinned distribution could not be retrieved.
// Retryable by the orchestrator; the fetcher itself already retried
// transient transport faults up to its bound.
type FetchError struct {
	Version string
	URL     string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sources: fetching %s from %s: %v", e.Version, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads pinned source tarballs into a destination directory,
// verifying checksums when the manifest pins them.
type Fetcher struct {
	Manifest *Manifest
	DestDir  string
	Client   *http.Client
	Retries  int
	Backoff  time.Duration
}

// NewFetcher creates a fetcher with bounded retry defaults.
func NewFetcher(m *Manifest, destDir string) *Fetcher {
	return &Fetcher{
		Manifest: m,
		DestDir:  destDir,
		Client:   &http.Client{Timeout: 15 * time.Minute},
		Retries:  2,
		Backoff:  time.Second,
	}
}

// Fetch downloads the distribution pinned for version and returns the local
// tarball path. An existing download with a matching checksum is reused.
func (f *Fetcher) Fetch(ctx context.Context, version string) (string, error) {
	pin, ok := f.Manifest.Lookup(version)
	if !ok {
		return "", &FetchError{Version: version, Err: fmt.Errorf("no pin in manifest")}
	}
	url := f.Manifest.URLFor(pin)
	dest := filepath.Join(f.DestDir, filepath.Base(url))

	// Reuse a previous download only when the manifest can vouch for it.
	if pin.SHA256 != "" {
		if err := verifySHA256(dest, pin.SHA256); err == nil {
			return dest, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= f.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &FetchError{Version: version, URL: url, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * f.Backoff):
			}
		}
		if err := f.download(ctx, url, dest); err != nil {
			lastErr = err
			continue
		}
		if pin.SHA256 != "" {
			if err := verifySHA256(dest, pin.SHA256); err != nil {
				// A checksum mismatch on a completed transfer is worth one
				// more attempt; mirrors do serve truncated files.
				lastErr = err
				continue
			}
		}
		return dest, nil
	}
	return "", &FetchError{Version: version, URL: url, Err: lastErr}
}

func (f *Fetcher) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("GET %s: %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	// Download to a temp name and rename, so a torn write never looks like
	// a finished tarball.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func verifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("sha256 mismatch: got %s, want %s", got, want)
	}
	return nil
}
