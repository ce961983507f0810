package kconfig

import (
	"context"
	"errors"
	"testing"
)

// chainSolver mimics the external dependency solver for a linear chain:
// enabling chain[i] exposes chain[i+1] in "is not set" form. Idempotent,
// like the real toolchain.
type chainSolver struct {
	chain []string
	calls int
}

func (s *chainSolver) Expand(_ context.Context, c *ConfigSet) error {
	s.calls++
	for i, name := range s.chain {
		if i == 0 {
			continue
		}
		prev, ok := c.Get(s.chain[i-1])
		if !ok || prev.NotSet() {
			continue
		}
		if _, exists := c.Get(name); !exists {
			c.MarkNotSet(name)
		}
	}
	return nil
}

func hidChain(depth int) []string {
	names := []string{"CONFIG_HID", "CONFIG_UHID", "CONFIG_HIDRAW", "CONFIG_USB_HID", "CONFIG_HID_GENERIC"}
	return names[:depth]
}

func chainRules(t *testing.T, chain []string) RuleSet {
	t.Helper()
	rules, err := CompileRules(chain)
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	return rules
}

func TestResolve_ConvergesAtChainDepth(t *testing.T) {
	const depth = 4
	chain := hidChain(depth)
	solver := &chainSolver{chain: chain}

	base := New()
	base.MarkNotSet(chain[0])
	base.Set("CONFIG_LOCALVERSION", `"-kfreight"`)

	resolved, err := Resolve(context.Background(), base, nil, chainRules(t, chain), solver, depth)
	if err != nil {
		t.Fatalf("Resolve(maxIterations=%d): %v", depth, err)
	}

	for _, name := range chain {
		s, ok := resolved.Get(name)
		if !ok || s.NotSet() || s.Value != "y" {
			t.Fatalf("option %s = %+v, want enabled", name, s)
		}
	}
	if remaining := chainRules(t, chain).UnsetMatches(resolved); len(remaining) != 0 {
		t.Fatalf("resolved config still has unset matches: %v", remaining)
	}
}

func TestResolve_UnconvergedBelowChainDepth(t *testing.T) {
	const depth = 4
	chain := hidChain(depth)
	solver := &chainSolver{chain: chain}

	base := New()
	base.MarkNotSet(chain[0])

	_, err := Resolve(context.Background(), base, nil, chainRules(t, chain), solver, depth-1)

	var unconverged *UnconvergedError
	if !errors.As(err, &unconverged) {
		t.Fatalf("expected *UnconvergedError, got %v", err)
	}
	if len(unconverged.Remaining) == 0 {
		t.Fatalf("unconverged error carries no remaining matches")
	}
	if unconverged.Config == nil {
		t.Fatalf("unconverged error carries no last state")
	}
	if unconverged.Iterations != depth-1 {
		t.Fatalf("iterations = %d, want %d", unconverged.Iterations, depth-1)
	}
}

func TestResolve_FixedPointStability(t *testing.T) {
	chain := hidChain(3)
	solver := &chainSolver{chain: chain}

	base := New()
	base.MarkNotSet(chain[0])

	rules := chainRules(t, chain)
	resolved, err := Resolve(context.Background(), base, nil, rules, solver, DefaultMaxIterations)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// Re-resolving an already-resolved config must rewrite nothing: one
	// initial solve, then the zero-rewrite pass.
	second := &chainSolver{chain: chain}
	again, err := Resolve(context.Background(), resolved, nil, rules, second, DefaultMaxIterations)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if second.calls != 1 {
		t.Fatalf("solver called %d times on re-resolve, want 1 (initial expand only)", second.calls)
	}
	if diff := Diff(resolved, again); len(diff) != 0 {
		t.Fatalf("re-resolve changed options: %v", diff)
	}
}

func TestResolve_OverridesWin(t *testing.T) {
	base := New()
	base.Set("CONFIG_LOCALVERSION", `"-base"`)
	base.MarkNotSet("CONFIG_UHID")

	overrides := New()
	overrides.Set("CONFIG_LOCALVERSION", `"-ci-4711"`)

	rules := chainRules(t, []string{"CONFIG_UHID"})
	resolved, err := Resolve(context.Background(), base, overrides, rules, SolverFunc(func(context.Context, *ConfigSet) error {
		return nil
	}), DefaultMaxIterations)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	s, _ := resolved.Get("CONFIG_LOCALVERSION")
	if s.Value != `"-ci-4711"` {
		t.Fatalf("CONFIG_LOCALVERSION = %s, want override value", s.Value)
	}
	if uhid, _ := resolved.Get("CONFIG_UHID"); uhid.Value != "y" {
		t.Fatalf("CONFIG_UHID = %+v, want enabled", uhid)
	}
}

func TestResolve_SolverErrorSurfaces(t *testing.T) {
	boom := errors.New("make olddefconfig: exit status 2")
	_, err := Resolve(context.Background(), New(), nil, nil, SolverFunc(func(context.Context, *ConfigSet) error {
		return boom
	}), DefaultMaxIterations)
	if !errors.Is(err, boom) {
		t.Fatalf("expected solver error to surface unmodified, got %v", err)
	}
}
