package config

// KconfigConfig controls kernel configuration resolution.
type KconfigConfig struct {
	// Base is a .config fragment file applied on top of the tree's
	// defconfig output before overrides.
	Base string `yaml:"base,omitempty"`

	// Overrides are exact option values that always win, keyed by full
	// option name: {CONFIG_HID_MULTITOUCH: y, CONFIG_LOCALVERSION: '"-kf"'}.
	Overrides map[string]string `yaml:"overrides,omitempty"`

	// Rules are regular expressions over option names. Any matching
	// option the solver leaves "is not set" gets enabled and the config
	// re-solved, until a fixed point or the iteration budget runs out.
	Rules []string `yaml:"rules,omitempty"`

	// MaxIterations bounds the enable/re-solve loop.
	MaxIterations int `yaml:"max_iterations"`

	// AllowUnconverged degrades an unconverged resolution to a warning.
	AllowUnconverged bool `yaml:"allow_unconverged"`
}

// DefaultKconfigConfig returns kconfig defaults.
func DefaultKconfigConfig() KconfigConfig {
	return KconfigConfig{
		MaxIterations: 3,
	}
}
