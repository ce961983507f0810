// Package config loads and validates the .kfreight.yml pipeline
// configuration.
package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".kfreight.yml"

// Config is the top-level kfreight configuration.
type Config struct {
	Version int           `yaml:"version"`
	Store   StoreConfig   `yaml:"store"`
	Matrix  MatrixConfig  `yaml:"matrix"`
	Kconfig KconfigConfig `yaml:"kconfig"`
	Sources SourcesConfig `yaml:"sources"`
	Build   BuildConfig   `yaml:"build"`
	Tests   TestsConfig   `yaml:"tests"`
	Lease   LeaseConfig   `yaml:"lease"`
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
// Returns sensible defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Version: 1,
		Store:   DefaultStoreConfig(),
		Matrix:  DefaultMatrixConfig(),
		Kconfig: DefaultKconfigConfig(),
		Sources: DefaultSourcesConfig(),
		Build:   DefaultBuildConfig(),
		Tests:   DefaultTestsConfig(),
		Lease:   DefaultLeaseConfig(),
	}
}
