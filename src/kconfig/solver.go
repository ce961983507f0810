package kconfig

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Solver materializes the dependent options of a configuration's enabled
// set, the way `make olddefconfig` does against a source tree. It must be
// idempotent when rerun against an already-expanded configuration.
type Solver interface {
	Expand(ctx context.Context, c *ConfigSet) error
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, c *ConfigSet) error

func (f SolverFunc) Expand(ctx context.Context, c *ConfigSet) error {
	return f(ctx, c)
}

// ExecSolver runs the external kconfig toolchain against a source tree:
// the in-progress configuration is written to .config, the solver command
// is invoked, and the materialized file is read back.
type ExecSolver struct {
	SrcDir  string
	Command []string // default: make olddefconfig
	Env     []string // appended to the process environment
	Stderr  *os.File
}

// NewExecSolver creates a solver for the given kernel source tree.
func NewExecSolver(srcDir string) *ExecSolver {
	return &ExecSolver{
		SrcDir:  srcDir,
		Command: []string{"make", "olddefconfig"},
	}
}

func (s *ExecSolver) Expand(ctx context.Context, c *ConfigSet) error {
	path := filepath.Join(s.SrcDir, ".config")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kconfig: writing %s: %w", path, err)
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("kconfig: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("kconfig: writing %s: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Dir = s.SrcDir
	cmd.Env = append(os.Environ(), s.Env...)
	if s.Stderr != nil {
		cmd.Stderr = s.Stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("kconfig: %v: %w", s.Command, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("kconfig: reading back %s: %w", path, err)
	}
	expanded, err := ParseString(string(data))
	if err != nil {
		return err
	}

	*c = *expanded
	return nil
}
