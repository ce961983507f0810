package config

// MatrixConfig defines the version × architecture build matrix.
type MatrixConfig struct {
	// Versions lists kernel versions to build, e.g. ["6.6.30", "6.9"].
	Versions []string `yaml:"versions"`

	// Arches lists target architectures. Supported: x86_64, arm64.
	Arches []string `yaml:"arches"`

	// Parallel bounds how many matrix entries run at once.
	Parallel int `yaml:"parallel"`
}

// DefaultMatrixConfig returns matrix defaults.
func DefaultMatrixConfig() MatrixConfig {
	return MatrixConfig{
		Arches:   []string{"x86_64"},
		Parallel: 2,
	}
}
