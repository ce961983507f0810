package config

// BuildConfig controls kernel compilation.
type BuildConfig struct {
	// Jobs is the make -j value. 0 means one job per CPU.
	Jobs int `yaml:"jobs"`

	// CrossCompile maps architecture to toolchain prefix, e.g.
	// {arm64: aarch64-linux-gnu-}. The host arch needs no entry.
	CrossCompile map[string]string `yaml:"cross_compile,omitempty"`
}

// DefaultBuildConfig returns build defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		CrossCompile: map[string]string{
			"arm64": "aarch64-linux-gnu-",
		},
	}
}
