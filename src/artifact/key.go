// Package artifact defines cacheable kernel build outputs and the store
// clients used to fetch and publish them.
package artifact

import (
	"fmt"
	"strings"
)

// Key uniquely identifies a cacheable build output by kernel version and
// target architecture. Immutable once created.
type Key struct {
	Version string
	Arch    string
}

// String returns the canonical "version/arch" form.
func (k Key) String() string {
	return k.Version + "/" + k.Arch
}

// ObjectPath returns the deterministic store location for this key.
func (k Key) ObjectPath() string {
	return fmt.Sprintf("kernels/%s/%s/%s", k.Version, k.Arch, k.imageName())
}

// imageName returns the conventional image filename for the architecture.
func (k Key) imageName() string {
	switch k.Arch {
	case "arm64", "riscv":
		return "Image"
	default:
		return "bzImage"
	}
}

// Validate checks that both components are present and free of path
// separators (keys are embedded verbatim in object paths).
func (k Key) Validate() error {
	if k.Version == "" {
		return fmt.Errorf("artifact key: version is required")
	}
	if k.Arch == "" {
		return fmt.Errorf("artifact key: arch is required")
	}
	for _, part := range []string{k.Version, k.Arch} {
		if strings.ContainsAny(part, "/\\") {
			return fmt.Errorf("artifact key: %q must not contain path separators", part)
		}
	}
	return nil
}

// Artifact is a published build output at a resolved store location.
type Artifact struct {
	Key      Key
	Location string
	Kind     Kind
	Size     int64
}
