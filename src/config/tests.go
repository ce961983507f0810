package config

// TestsConfig controls workload execution and verdict policy.
type TestsConfig struct {
	// Harness is the command that boots the built kernel and runs the
	// workload, invoked per matrix entry with KF_KERNEL / KF_ARCH /
	// KF_VERSION in its environment.
	Harness []string `yaml:"harness,omitempty"`

	// ReportGlobs match the JUnit XML files the harness writes.
	ReportGlobs []string `yaml:"report_globs"`

	// FailuresBlock makes assertion failures halt the pipeline.
	// Infrastructure errors always block; this only gates failures.
	FailuresBlock bool `yaml:"failures_block"`
}

// DefaultTestsConfig returns test defaults.
func DefaultTestsConfig() TestsConfig {
	return TestsConfig{
		ReportGlobs: []string{"results/*.xml"},
	}
}
