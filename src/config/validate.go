package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	validStoreBackends = map[string]bool{"http": true, "s3": true}
	validLeaseBackends = map[string]bool{"none": true, "local": true, "etcd": true}
	validArches        = map[string]bool{"x86_64": true, "arm64": true}
	optionNameRe       = regexp.MustCompile(`^CONFIG_[A-Za-z0-9_]+$`)
)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Version ───────────────────────────────────────────────────────────

	if cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("version: must be 1, got %d", cfg.Version))
	}

	// ── Store ─────────────────────────────────────────────────────────────

	if !validStoreBackends[cfg.Store.Backend] {
		errs = append(errs, fmt.Sprintf("store.backend: unknown backend %q (supported: http, s3)", cfg.Store.Backend))
	}
	switch cfg.Store.Backend {
	case "http":
		if cfg.Store.HTTP.BaseURL == "" {
			errs = append(errs, "store.http: base_url is required")
		}
		if cfg.Store.HTTP.AckToken == "" {
			warnings = append(warnings, "store.http: empty ack_token accepts any 2xx as a publish ack; silent drops will go unnoticed")
		}
	case "s3":
		if cfg.Store.S3.Endpoint == "" {
			errs = append(errs, "store.s3: endpoint is required")
		}
		if cfg.Store.S3.Bucket == "" {
			errs = append(errs, "store.s3: bucket is required")
		}
	}
	if cfg.Store.Retries < 0 {
		errs = append(errs, fmt.Sprintf("store.retries: must be >= 0, got %d", cfg.Store.Retries))
	}

	// ── Matrix ────────────────────────────────────────────────────────────

	if len(cfg.Matrix.Versions) == 0 {
		errs = append(errs, "matrix.versions: at least one kernel version is required")
	}
	seenVersions := make(map[string]bool)
	for i, v := range cfg.Matrix.Versions {
		vpath := fmt.Sprintf("matrix.versions[%d]", i)
		if seenVersions[v] {
			errs = append(errs, fmt.Sprintf("%s: duplicate version %q", vpath, v))
		}
		seenVersions[v] = true
		if _, perr := semver.NewVersion(v); perr != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a valid version: %v", vpath, v, perr))
		}
	}
	if len(cfg.Matrix.Arches) == 0 {
		errs = append(errs, "matrix.arches: at least one architecture is required")
	}
	for i, a := range cfg.Matrix.Arches {
		if !validArches[a] {
			errs = append(errs, fmt.Sprintf("matrix.arches[%d]: unknown architecture %q (supported: x86_64, arm64)", i, a))
		}
	}
	if cfg.Matrix.Parallel < 1 {
		errs = append(errs, fmt.Sprintf("matrix.parallel: must be >= 1, got %d", cfg.Matrix.Parallel))
	}

	// ── Kconfig ───────────────────────────────────────────────────────────

	for name := range cfg.Kconfig.Overrides {
		if !optionNameRe.MatchString(name) {
			errs = append(errs, fmt.Sprintf("kconfig.overrides: %q is not a config option name (must match CONFIG_[A-Za-z0-9_]+)", name))
		}
	}
	for i, rule := range cfg.Kconfig.Rules {
		if _, rerr := regexp.Compile(rule); rerr != nil {
			errs = append(errs, fmt.Sprintf("kconfig.rules[%d]: bad pattern %q: %v", i, rule, rerr))
		}
	}
	if cfg.Kconfig.MaxIterations < 1 {
		errs = append(errs, fmt.Sprintf("kconfig.max_iterations: must be >= 1, got %d", cfg.Kconfig.MaxIterations))
	}
	if cfg.Kconfig.MaxIterations > 10 {
		warnings = append(warnings, fmt.Sprintf("kconfig.max_iterations: %d is unusually high; dependency chains deeper than a few levels usually mean a missing override", cfg.Kconfig.MaxIterations))
	}

	// ── Sources ───────────────────────────────────────────────────────────

	if cfg.Sources.Manifest == "" {
		errs = append(errs, "sources.manifest: manifest path is required")
	}
	if cfg.Sources.Workspace == "" {
		errs = append(errs, "sources.workspace: workspace path is required")
	}

	// ── Build ─────────────────────────────────────────────────────────────

	if cfg.Build.Jobs < 0 {
		errs = append(errs, fmt.Sprintf("build.jobs: must be >= 0, got %d", cfg.Build.Jobs))
	}
	for arch := range cfg.Build.CrossCompile {
		if !validArches[arch] {
			errs = append(errs, fmt.Sprintf("build.cross_compile: unknown architecture %q", arch))
		}
	}

	// ── Tests ─────────────────────────────────────────────────────────────

	if len(cfg.Tests.Harness) > 0 && len(cfg.Tests.ReportGlobs) == 0 {
		errs = append(errs, "tests.report_globs: required when a harness is configured")
	}

	// ── Lease ─────────────────────────────────────────────────────────────

	if !validLeaseBackends[cfg.Lease.Backend] {
		errs = append(errs, fmt.Sprintf("lease.backend: unknown backend %q (supported: none, local, etcd)", cfg.Lease.Backend))
	}
	if cfg.Lease.Backend == "etcd" && len(cfg.Lease.Endpoints) == 0 {
		errs = append(errs, "lease.endpoints: required for backend etcd")
	}
	if cfg.Lease.Backend == "none" {
		warnings = append(warnings, "lease.backend: \"none\" lets concurrent runners build and publish the same artifact; last writer wins")
	}
	if cfg.Lease.TTLSeconds < 1 {
		errs = append(errs, fmt.Sprintf("lease.ttl_seconds: must be >= 1, got %d", cfg.Lease.TTLSeconds))
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}
