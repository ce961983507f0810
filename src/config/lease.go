package config

// LeaseConfig selects the build lease backend. Leases serialize builds
// of the same artifact key across runners so concurrent pipelines don't
// duplicate work or race publishes.
type LeaseConfig struct {
	// Backend is the lease type. Supported: "none", "local", "etcd".
	// "none" preserves last-writer-wins behavior between runners.
	Backend string `yaml:"backend"`

	// Endpoints are etcd cluster addresses, required for backend etcd.
	Endpoints []string `yaml:"endpoints,omitempty"`

	// TTLSeconds bounds how long a crashed holder blocks others.
	TTLSeconds int `yaml:"ttl_seconds"`
}

// DefaultLeaseConfig returns lease defaults.
func DefaultLeaseConfig() LeaseConfig {
	return LeaseConfig{
		Backend:    "local",
		TTLSeconds: 1800,
	}
}
