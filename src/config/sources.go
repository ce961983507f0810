package config

// SourcesConfig locates kernel sources and the working directory.
type SourcesConfig struct {
	// Manifest is the TOML file pinning kernel versions to tarball URLs
	// and checksums.
	Manifest string `yaml:"manifest"`

	// Workspace is where tarballs and unpacked trees live.
	Workspace string `yaml:"workspace"`
}

// DefaultSourcesConfig returns sources defaults.
func DefaultSourcesConfig() SourcesConfig {
	return SourcesConfig{
		Manifest:  "kernels.toml",
		Workspace: ".kfreight/work",
	}
}
