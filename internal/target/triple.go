// Package target parses and validates target-triple identifiers of the form
// arch-vendor-os[-env], as used throughout the manifest and toolchain
// descriptor data model (spec.md §3).
package target

import (
	"fmt"
	"runtime"
	"strings"
)

// Triple is a parsed target identifier, e.g. x86_64-unknown-linux-gnu.
type Triple struct {
	Arch   string
	Vendor string
	OS     string
	Env    string // optional, e.g. "gnu", "musl"; empty if absent
	raw    string
}

func (t Triple) String() string {
	if t.raw != "" {
		return t.raw
	}
	if t.Env == "" {
		return fmt.Sprintf("%s-%s-%s", t.Arch, t.Vendor, t.OS)
	}
	return fmt.Sprintf("%s-%s-%s-%s", t.Arch, t.Vendor, t.OS, t.Env)
}

// Wildcard denotes a target-independent component such as source code.
const Wildcard = "*"

// Parse validates and decomposes a target triple. A literal "*" parses as
// the wildcard target and all other fields empty.
func Parse(s string) (Triple, error) {
	if s == Wildcard {
		return Triple{raw: Wildcard}, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) < 3 {
		return Triple{}, fmt.Errorf("malformed target triple %q: expected arch-vendor-os[-env]", s)
	}
	t := Triple{
		Arch:   parts[0],
		Vendor: parts[1],
		OS:     strings.Join(parts[2:minInt(len(parts), 3)], "-"),
		raw:    s,
	}
	if len(parts) > 3 {
		t.OS = parts[2]
		t.Env = strings.Join(parts[3:], "-")
	}
	return t, nil
}

// IsWildcard reports whether the triple is the target-independent wildcard.
func (t Triple) IsWildcard() bool { return t.raw == Wildcard }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// HostTriple returns the best-effort triple of the host the manager itself
// is running on, used as the default install target and to resolve partial
// toolchain descriptors (spec.md §3 "Partial descriptors missing the
// target are resolved against the host triple").
func HostTriple() string {
	arch := goArchToTripleArch(runtime.GOARCH)
	switch runtime.GOOS {
	case "linux":
		return fmt.Sprintf("%s-unknown-linux-gnu", arch)
	case "darwin":
		return fmt.Sprintf("%s-apple-darwin", arch)
	case "windows":
		return fmt.Sprintf("%s-pc-windows-msvc", arch)
	case "freebsd":
		return fmt.Sprintf("%s-unknown-freebsd", arch)
	default:
		return fmt.Sprintf("%s-unknown-%s", arch, runtime.GOOS)
	}
}

func goArchToTripleArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "arm":
		return "armv7"
	default:
		return goarch
	}
}

// ExeSuffix returns the platform's executable file suffix, used when
// locating a proxied tool's binary inside a toolchain prefix (spec.md §4.9).
func ExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// DylibEnvVar returns the platform-specific dynamic library search path
// environment variable name (spec.md §4.9 step 4).
func DylibEnvVar() string {
	switch runtime.GOOS {
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	case "windows":
		return "PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}
