package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/kfreight/src/artifact"
	"github.com/sofmeright/kfreight/src/buildgate"
	"github.com/sofmeright/kfreight/src/config"
	"github.com/sofmeright/kfreight/src/gitver"
	"github.com/sofmeright/kfreight/src/kconfig"
)

var (
	resolveArch   string
	resolveOut    string
	resolveBase   string
	resolveIters  int
	allowUnconv   bool
	archKbuildEnv = map[string]string{
		"x86_64": "x86_64",
		"arm64":  "arm64",
	}
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <version>",
	Short: "Resolve the kernel configuration for one matrix entry",
	Long: `Resolve merges the base fragment and overrides, expands dependent
options through the tree's config solver, and repeatedly enables
rule-matched options until the configuration reaches a fixed point.

The resolved .config is written to --out, or stdout when unset.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveArch, "arch", "x86_64", "target architecture")
	resolveCmd.Flags().StringVar(&resolveOut, "out", "", "write resolved config to file instead of stdout")
	resolveCmd.Flags().StringVar(&resolveBase, "base", "", "override the configured base fragment file")
	resolveCmd.Flags().IntVar(&resolveIters, "max-iter", 0, "override the configured iteration budget")
	resolveCmd.Flags().BoolVar(&allowUnconv, "allow-unconverged", false, "degrade an unconverged resolution to a warning and emit the partial config")
	rootCmd.AddCommand(resolveCmd)
}

// newResolver builds the gate's config resolver from configuration: base
// fragment, overrides (plus the checkout's localversion), rules, and the
// external solver run against the source tree.
func newResolver(cfg *config.Config) (buildgate.ConfigResolver, error) {
	base := kconfig.New()
	if cfg.Kconfig.Base != "" {
		data, err := os.ReadFile(cfg.Kconfig.Base)
		if err != nil {
			return nil, fmt.Errorf("reading base fragment: %w", err)
		}
		base, err = kconfig.ParseString(string(data))
		if err != nil {
			return nil, err
		}
	}

	overrides := kconfig.New()
	for name, value := range cfg.Kconfig.Overrides {
		overrides.Set(name, value)
	}
	if _, ok := overrides.Get("CONFIG_LOCALVERSION"); !ok {
		if id, err := gitver.Detect("."); err == nil {
			overrides.Set("CONFIG_LOCALVERSION", fmt.Sprintf("%q", id.LocalVersion()))
		}
	}

	rules, err := kconfig.CompileRules(cfg.Kconfig.Rules)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, srcDir string, key artifact.Key) (*kconfig.ConfigSet, error) {
		solver := kconfig.NewExecSolver(srcDir)
		if kb, ok := archKbuildEnv[key.Arch]; ok {
			solver.Env = append(solver.Env, "ARCH="+kb)
		}
		if cross := cfg.Build.CrossCompile[key.Arch]; cross != "" {
			solver.Env = append(solver.Env, "CROSS_COMPILE="+cross)
		}

		resolved, err := kconfig.Resolve(ctx, base, overrides, rules, solver, cfg.Kconfig.MaxIterations)
		if err != nil {
			var unconv *kconfig.UnconvergedError
			if errors.As(err, &unconv) && cfg.Kconfig.AllowUnconverged {
				fmt.Fprintf(os.Stderr, "warning: %v\n", unconv)
				return unconv.Config, nil
			}
			return nil, err
		}
		return resolved, nil
	}, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	version := args[0]
	key := artifact.Key{Version: version, Arch: resolveArch}
	if err := key.Validate(); err != nil {
		return err
	}

	// Command-line overrides win over the config file.
	if allowUnconv {
		cfg.Kconfig.AllowUnconverged = true
	}
	if resolveBase != "" {
		cfg.Kconfig.Base = resolveBase
	}
	if resolveIters > 0 {
		cfg.Kconfig.MaxIterations = resolveIters
	}

	ws, err := newWorkspace(cfg)
	if err != nil {
		return err
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srcDir, err := ws.SrcDir(ctx, version)
	if err != nil {
		return err
	}

	resolved, err := resolver(ctx, srcDir, key)
	if err != nil {
		return err
	}

	if resolveOut == "" {
		fmt.Print(resolved.String())
		return nil
	}
	f, err := os.Create(resolveOut)
	if err != nil {
		return fmt.Errorf("creating %s: %w", resolveOut, err)
	}
	defer f.Close()
	if _, err := resolved.WriteTo(f); err != nil {
		return fmt.Errorf("writing %s: %w", resolveOut, err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "resolved %d options → %s\n", resolved.Len(), resolveOut)
	}
	return nil
}
