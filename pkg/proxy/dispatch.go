// Package proxy implements the dispatcher that, when the manager binary
// is invoked under the filename of a proxied tool (rustc, cargo, ...),
// executes that tool from the selected toolchain's prefix (spec.md §4.9).
package proxy

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rustup-go/rustup-go/internal/target"
	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// maxRecursionDepth bounds the proxy's self-reentrancy guard (spec.md
// §4.9 step 4 "if it exceeds 20 fail with infinite-proxy-recursion").
const maxRecursionDepth = 20

// toolOwner maps a proxied tool's stem to the package that provides it,
// used to distinguish component-available-but-not-installed from
// tool-not-applicable-to-this-toolchain when the binary is absent.
var toolOwner = map[string]string{
	"rustc":         "rustc",
	"rustdoc":       "rustc",
	"rust-gdb":      "rustc",
	"rust-lldb":     "rustc",
	"rust-gdbgui":   "rustc",
	"cargo":         "cargo",
	"cargo-fmt":     "rustfmt",
	"rustfmt":       "rustfmt",
	"cargo-clippy":  "clippy",
	"clippy-driver": "clippy",
	"rust-analyzer": "rust-analyzer",
}

// IsProxiedName reports whether stem is a filename the manager knows to
// dispatch through a toolchain prefix rather than its own subcommands.
func IsProxiedName(stem string) bool {
	_, ok := toolOwner[stem]
	return ok
}

// Stem extracts the proxy-dispatch key from argv[0]: the base filename
// with any platform executable suffix removed (spec.md §4.9 step 1).
func Stem(argv0 string) string {
	base := filepath.Base(argv0)
	return strings.TrimSuffix(base, target.ExeSuffix())
}

// LocateBinary finds the on-disk path for a proxied tool within a
// resolved toolchain's prefix (spec.md §4.9 step 3).
func LocateBinary(pfx *prefix.Prefix, stem, toolchainName string) (string, error) {
	path := pfx.BinaryPath(stem + target.ExeSuffix())
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	pkgName, known := toolOwner[stem]
	if !known {
		return "", rustuperr.ToolNotApplicable(stem, toolchainName)
	}

	text, err := pfx.LoadChannelManifest()
	if err == nil && text != "" {
		if m, perr := manifest.Parse(text); perr == nil {
			if _, ok := m.Pkg[pkgName]; ok {
				return "", rustuperr.ComponentAvailableButNotInstalled(stem, toolchainName, "component add "+pkgName)
			}
		}
	}
	return "", rustuperr.ToolNotApplicable(stem, toolchainName)
}

// BuildChildEnv constructs the environment for the spawned tool: the
// toolchain's lib directory prepended to the dynamic-library search path,
// the manager's own bin directory prepended to PATH so nested invocations
// re-enter the proxy, the selected toolchain name, and an incremented
// recursion counter (spec.md §4.9 step 4).
func BuildChildEnv(parentEnv []string, pfx *prefix.Prefix, toolchainName, managerBinDir string) ([]string, error) {
	depth, err := nextRecursionDepth(parentEnv)
	if err != nil {
		return nil, err
	}

	env := make([]string, 0, len(parentEnv)+4)
	dylibVar := target.DylibEnvVar()
	pathSet, dylibSet := false, false

	for _, kv := range parentEnv {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			env = append(env, "PATH="+managerBinDir+string(os.PathListSeparator)+strings.TrimPrefix(kv, "PATH="))
			pathSet = true
		case strings.HasPrefix(kv, dylibVar+"="):
			env = append(env, dylibVar+"="+pfx.LibDir()+string(os.PathListSeparator)+strings.TrimPrefix(kv, dylibVar+"="))
			dylibSet = true
		case strings.HasPrefix(kv, rconfig.EnvToolchain+"="),
			strings.HasPrefix(kv, rconfig.EnvRecursionCount+"="):
			// replaced below
		default:
			env = append(env, kv)
		}
	}
	if !pathSet {
		env = append(env, "PATH="+managerBinDir)
	}
	if !dylibSet {
		env = append(env, dylibVar+"="+pfx.LibDir())
	}
	env = append(env, rconfig.EnvToolchain+"="+toolchainName)
	env = append(env, rconfig.EnvRecursionCount+"="+strconv.Itoa(depth))
	return env, nil
}

func nextRecursionDepth(parentEnv []string) (int, error) {
	current := 0
	prefixStr := rconfig.EnvRecursionCount + "="
	for _, kv := range parentEnv {
		if strings.HasPrefix(kv, prefixStr) {
			if n, err := strconv.Atoi(strings.TrimPrefix(kv, prefixStr)); err == nil {
				current = n
			}
		}
	}
	next := current + 1
	if next > maxRecursionDepth {
		return 0, rustuperr.New(rustuperr.KindInfiniteProxyRecursion,
			"proxy recursion depth exceeded 20; a toolchain's proxied tool is likely invoking itself")
	}
	return next, nil
}
