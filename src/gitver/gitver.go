// Package gitver derives a build identity from the harness repository's
// git state. The identity feeds CONFIG_LOCALVERSION so a booted kernel
// reports which checkout produced it, and names pipeline runs in logs.
package gitver

import (
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// BuildID identifies the checkout a pipeline run was built from.
type BuildID struct {
	SHA    string // short commit hash, 7 hex chars
	Branch string // branch name, "" when detached
	Dirty  bool   // uncommitted changes in the worktree
}

// Detect reads the repository containing dir. Detection walks up parent
// directories the way git itself does, so any path inside the checkout
// works.
func Detect(dir string) (*BuildID, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("gitver: opening repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("gitver: resolving HEAD: %w", err)
	}

	id := &BuildID{SHA: head.Hash().String()[:7]}
	if name := head.Name(); name.IsBranch() {
		id.Branch = name.Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repository: nothing can be dirty.
		if err == git.ErrIsBareRepository {
			return id, nil
		}
		return nil, fmt.Errorf("gitver: opening worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("gitver: reading worktree status: %w", err)
	}
	id.Dirty = !status.IsClean()
	return id, nil
}

// LocalVersion renders the CONFIG_LOCALVERSION value for this build,
// e.g. "-kf-3f2a1bc" or "-kf-3f2a1bc-dirty". The leading dash follows
// the kernel's localversion convention.
func (b *BuildID) LocalVersion() string {
	v := "-kf-" + b.SHA
	if b.Dirty {
		v += "-dirty"
	}
	return v
}

// String is the run identifier used in logs and section headers.
func (b *BuildID) String() string {
	parts := []string{b.SHA}
	if b.Branch != "" {
		parts = append([]string{b.Branch}, parts...)
	}
	s := strings.Join(parts, "@")
	if b.Dirty {
		s += "+dirty"
	}
	return s
}

// ResolveCommit resolves a revision (branch, tag, or hash prefix) to a
// full commit hash, for pinning a harness checkout in reports.
func ResolveCommit(dir, rev string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("gitver: opening repository at %s: %w", dir, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("gitver: resolving %q: %w", rev, err)
	}
	return hash.String(), nil
}
