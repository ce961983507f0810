package artifact

import "bytes"

// Kind classifies a fetched payload. Anything that is not a recognizable
// kernel image is Unknown and treated as a cache miss by the build gate,
// even if the payload sits at the expected location.
type Kind int

const (
	KindUnknown Kind = iota
	KindKernelImage
)

func (k Kind) String() string {
	switch k {
	case KindKernelImage:
		return "kernel-image"
	default:
		return "unknown"
	}
}

const (
	// x86 boot protocol: "HdrS" signature at offset 0x202 of the setup header.
	x86HeaderOffset = 0x202

	// arm64 Image header: "ARM\x64" magic at offset 0x38.
	arm64MagicOffset = 0x38
)

var (
	x86Header  = []byte("HdrS")
	arm64Magic = []byte{'A', 'R', 'M', 0x64}
	elfMagic   = []byte{0x7f, 'E', 'L', 'F'}
	gzipMagic  = []byte{0x1f, 0x8b}
)

// Sniff classifies a payload by format signature. The location string is
// never consulted; only the bytes decide.
func Sniff(payload []byte) Kind {
	switch {
	case isBzImage(payload):
		return KindKernelImage
	case isArm64Image(payload):
		return KindKernelImage
	case bytes.HasPrefix(payload, elfMagic):
		// Uncompressed vmlinux.
		return KindKernelImage
	case bytes.HasPrefix(payload, gzipMagic):
		// Self-decompressing zImage variants ship gzip-first.
		return KindKernelImage
	default:
		return KindUnknown
	}
}

func isBzImage(payload []byte) bool {
	if len(payload) < x86HeaderOffset+len(x86Header) {
		return false
	}
	return bytes.Equal(payload[x86HeaderOffset:x86HeaderOffset+len(x86Header)], x86Header)
}

func isArm64Image(payload []byte) bool {
	if len(payload) < arm64MagicOffset+len(arm64Magic) {
		return false
	}
	return bytes.Equal(payload[arm64MagicOffset:arm64MagicOffset+len(arm64Magic)], arm64Magic)
}
