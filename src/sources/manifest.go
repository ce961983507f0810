// Package sources acquires pinned kernel source distributions.
package sources

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
)

// Manifest pins source distributions per kernel version. Entries without an
// explicit URL fall back to the defaults template.
type Manifest struct {
	Defaults Defaults `toml:"defaults"`
	Kernels  []Pin    `toml:"kernel"`
}

// Defaults holds manifest-wide settings.
type Defaults struct {
	// URLTemplate supports {version}, {major} placeholders, e.g.
	// "https://cdn.kernel.org/pub/linux/kernel/v{major}.x/linux-{version}.tar.xz"
	URLTemplate string `toml:"url_template"`
}

// Pin is one pinned distribution.
type Pin struct {
	Version string `toml:"version"`
	URL     string `toml:"url,omitempty"`
	SHA256  string `toml:"sha256,omitempty"`
}

// LoadManifest reads and validates a sources.toml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources: reading manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("sources: parsing %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := map[string]bool{}
	for i, pin := range m.Kernels {
		if pin.Version == "" {
			return fmt.Errorf("sources: kernel[%d]: version is required", i)
		}
		if seen[pin.Version] {
			return fmt.Errorf("sources: duplicate pin for version %s", pin.Version)
		}
		seen[pin.Version] = true
		if _, err := semver.NewVersion(pin.Version); err != nil {
			return fmt.Errorf("sources: kernel[%d]: version %q: %w", i, pin.Version, err)
		}
		if pin.URL == "" && m.Defaults.URLTemplate == "" {
			return fmt.Errorf("sources: kernel[%d]: no url and no defaults.url_template", i)
		}
	}
	return nil
}

// Lookup returns the pin for an exact version.
func (m *Manifest) Lookup(version string) (Pin, bool) {
	for _, pin := range m.Kernels {
		if pin.Version == version {
			return pin, true
		}
	}
	return Pin{}, false
}

// Latest returns the highest pinned version by semver ordering.
func (m *Manifest) Latest() (Pin, bool) {
	if len(m.Kernels) == 0 {
		return Pin{}, false
	}
	pins := make([]Pin, len(m.Kernels))
	copy(pins, m.Kernels)
	sort.Slice(pins, func(i, j int) bool {
		vi := semver.MustParse(pins[i].Version)
		vj := semver.MustParse(pins[j].Version)
		return vi.LessThan(vj)
	})
	return pins[len(pins)-1], true
}

// Versions returns all pinned versions in ascending semver order.
func (m *Manifest) Versions() []string {
	out := make([]string, 0, len(m.Kernels))
	for _, pin := range m.Kernels {
		out = append(out, pin.Version)
	}
	sort.Slice(out, func(i, j int) bool {
		return semver.MustParse(out[i]).LessThan(semver.MustParse(out[j]))
	})
	return out
}

// URLFor resolves the download URL for a pin, applying the defaults
// template when the pin has no explicit URL.
func (m *Manifest) URLFor(pin Pin) string {
	if pin.URL != "" {
		return pin.URL
	}
	v := semver.MustParse(pin.Version)
	url := m.Defaults.URLTemplate
	url = strings.ReplaceAll(url, "{version}", pin.Version)
	url = strings.ReplaceAll(url, "{major}", fmt.Sprintf("%d", v.Major()))
	return url
}
