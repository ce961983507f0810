package sources

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Workspace prepares kernel source trees: it fetches the pinned tarball and
// unpacks it under the workspace root, reusing trees that are already
// unpacked. Each version gets its own directory so matrix entries never
// share mutable state.
type Workspace struct {
	Fetcher *Fetcher
	Root    string
}

// NewWorkspace creates a workspace rooted at dir.
func NewWorkspace(m *Manifest, dir string) *Workspace {
	return &Workspace{
		Fetcher: NewFetcher(m, filepath.Join(dir, "dist")),
		Root:    dir,
	}
}

// SrcDir returns a prepared source tree for the version, fetching and
// unpacking on first use.
func (w *Workspace) SrcDir(ctx context.Context, version string) (string, error) {
	dir := filepath.Join(w.Root, "linux-"+version)
	if fi, err := os.Stat(filepath.Join(dir, "Makefile")); err == nil && !fi.IsDir() {
		return dir, nil
	}

	tarball, err := w.Fetcher.Fetch(ctx, version)
	if err != nil {
		return "", err
	}
	if err := unpack(ctx, tarball, dir); err != nil {
		return "", &FetchError{Version: version, URL: tarball, Err: err}
	}
	return dir, nil
}

// unpack extracts a source tarball into dest, stripping the leading
// linux-x.y directory component. Extraction goes to a staging directory
// first so an interrupted unpack never looks like a finished tree.
func unpack(ctx context.Context, tarball, dest string) error {
	staging := dest + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}

	args := []string{"-xf", tarball, "-C", staging, "--strip-components=1"}
	if strings.HasSuffix(tarball, ".xz") {
		args = append([]string{"-J"}, args...)
	}
	cmd := exec.CommandContext(ctx, "tar", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("tar: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(staging, dest)
}
