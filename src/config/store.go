package config

// StoreConfig selects and configures the artifact store backend.
//
// This is a discriminated union keyed by Backend — only the section
// matching the backend should be set. Validated at load time.
type StoreConfig struct {
	// Backend is the store type. Supported: "http", "s3".
	Backend string `yaml:"backend"`

	HTTP HTTPStoreConfig `yaml:"http,omitempty"`
	S3   S3StoreConfig   `yaml:"s3,omitempty"`

	// Retries is how many extra attempts transport faults get.
	// Rejected publishes are never retried regardless of this setting.
	Retries int `yaml:"retries"`

	// BackoffMS is the linear backoff step between retries.
	BackoffMS int `yaml:"backoff_ms"`
}

// HTTPStoreConfig configures the plain HTTP artifact store.
type HTTPStoreConfig struct {
	// BaseURL is the store root, e.g. "https://cache.example.org/artifacts".
	BaseURL string `yaml:"base_url"`

	// AckToken is the body substring that confirms the store actually
	// created the object. Default: "201: created".
	AckToken string `yaml:"ack_token,omitempty"`
}

// S3StoreConfig configures the S3-compatible artifact store.
// Credentials come from KF_S3_ACCESS_KEY / KF_S3_SECRET_KEY, never from
// the config file.
type S3StoreConfig struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// DefaultStoreConfig returns store defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:   "http",
		HTTP:      HTTPStoreConfig{AckToken: "201: created"},
		S3:        S3StoreConfig{UseSSL: true},
		Retries:   2,
		BackoffMS: 500,
	}
}
