package buildgate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/sofmeright/kfreight/src/artifact"
	"github.com/sofmeright/kfreight/src/kconfig"
)

// Builder turns a prepared source tree plus a resolved configuration into a
// kernel image payload.
type Builder interface {
	Build(ctx context.Context, srcDir string, key artifact.Key, cfg *kconfig.ConfigSet, jobs int) ([]byte, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, srcDir string, key artifact.Key, cfg *kconfig.ConfigSet, jobs int) ([]byte, error)

func (f BuilderFunc) Build(ctx context.Context, srcDir string, key artifact.Key, cfg *kconfig.ConfigSet, jobs int) ([]byte, error) {
	return f(ctx, srcDir, key, cfg, jobs)
}

// archTarget maps a key architecture to its make target, image path inside
// the tree, and kbuild ARCH value.
type archTarget struct {
	makeTarget string
	imagePath  string
	kbuildArch string
}

var archTargets = map[string]archTarget{
	"x86_64": {"bzImage", "arch/x86/boot/bzImage", "x86_64"},
	"arm64":  {"Image", "arch/arm64/boot/Image", "arm64"},
}

// ExecBuilder invokes the external kernel toolchain.
type ExecBuilder struct {
	CrossCompile map[string]string // arch → CROSS_COMPILE prefix
	Verbose      bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// NewExecBuilder creates a builder with default output writers.
func NewExecBuilder(verbose bool) *ExecBuilder {
	return &ExecBuilder{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Build writes the resolved configuration, runs make with a bounded -j, and
// returns the produced image bytes. A non-zero toolchain exit is a
// CompileError.
func (b *ExecBuilder) Build(ctx context.Context, srcDir string, key artifact.Key, cfg *kconfig.ConfigSet, jobs int) ([]byte, error) {
	target, ok := archTargets[key.Arch]
	if !ok {
		return nil, &CompileError{Key: key, Err: fmt.Errorf("unsupported architecture %q", key.Arch)}
	}
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	configPath := filepath.Join(srcDir, ".config")
	f, err := os.Create(configPath)
	if err != nil {
		return nil, fmt.Errorf("buildgate: writing %s: %w", configPath, err)
	}
	if _, err := cfg.WriteTo(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("buildgate: writing %s: %w", configPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("buildgate: writing %s: %w", configPath, err)
	}

	args := []string{fmt.Sprintf("-j%d", jobs), target.makeTarget}
	if b.Verbose {
		fmt.Fprintf(b.stderr(), "exec: make %v (ARCH=%s)\n", args, target.kbuildArch)
	}

	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = srcDir
	cmd.Env = append(os.Environ(), "ARCH="+target.kbuildArch)
	if cross := b.CrossCompile[key.Arch]; cross != "" {
		cmd.Env = append(cmd.Env, "CROSS_COMPILE="+cross)
	}

	var tail bytes.Buffer
	cmd.Stdout = b.stdout()
	cmd.Stderr = io.MultiWriter(b.stderr(), &tail)

	if err := cmd.Run(); err != nil {
		return nil, &CompileError{Key: key, Detail: truncateTail(tail.Bytes(), 1024), Err: err}
	}

	payload, err := os.ReadFile(filepath.Join(srcDir, target.imagePath))
	if err != nil {
		return nil, &CompileError{Key: key, Detail: "build succeeded but image is missing", Err: err}
	}
	return payload, nil
}

func (b *ExecBuilder) stdout() io.Writer {
	if b.Stdout != nil {
		return b.Stdout
	}
	return io.Discard
}

func (b *ExecBuilder) stderr() io.Writer {
	if b.Stderr != nil {
		return b.Stderr
	}
	return io.Discard
}

func truncateTail(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return "..." + string(b[len(b)-max:])
}
