// Package toolchain implements the selector responsible for choosing
// which toolchain a command refers to (spec.md §4.8) and resolving its
// on-disk prefix.
package toolchain

import (
	"os"
	"path/filepath"

	"github.com/rustup-go/rustup-go/internal/target"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// Source names where a resolved toolchain name came from, surfaced by the
// supplemented "show"-equivalent (SPEC_FULL.md) and useful in diagnostics.
type Source string

const (
	SourceExplicit  Source = "explicit"
	SourceEnv       Source = "environment"
	SourceOverride  Source = "directory-override"
	SourceDefault   Source = "default"
)

// Resolution is the outcome of Resolve: which toolchain, and why.
type Resolution struct {
	Name   string
	Source Source
	// OverridePath is set when Source == SourceOverride, the override
	// file that produced the decision.
	OverridePath string
}

// Resolve implements the precedence of spec.md §4.8: an explicit +name
// wins, then RUSTUP_TOOLCHAIN, then the nearest ancestor directory
// override file, then the global default, else no-default-toolchain.
func Resolve(explicit string, cwd string, settings *rconfig.Settings) (*Resolution, error) {
	if explicit != "" {
		return &Resolution{Name: explicit, Source: SourceExplicit}, nil
	}
	if envName := os.Getenv(rconfig.EnvToolchain); envName != "" {
		return &Resolution{Name: envName, Source: SourceEnv}, nil
	}
	if path, ov, err := FindOverride(cwd); err != nil {
		return nil, err
	} else if ov != nil {
		return &Resolution{Name: ov.Channel, Source: SourceOverride, OverridePath: path}, nil
	}
	if settings.DefaultToolchain != "" {
		return &Resolution{Name: settings.DefaultToolchain, Source: SourceDefault}, nil
	}
	return nil, rustuperr.New(rustuperr.KindNoDefaultToolchain,
		"no default toolchain configured; run `toolchain install <name>` or set one with `toolchain default <name>`")
}

// Prefix returns the on-disk InstallPrefix for a resolved toolchain name,
// opening (and thereby creating the layout for) it; callers decide
// whether "never installed" should trigger auto-install.
func Prefix(ctxHome string, name string) (*prefix.Prefix, bool, error) {
	root := filepath.Join(ctxHome, "toolchains", name)
	installed := dirHasContent(root)
	p, err := prefix.Open(root)
	if err != nil {
		return nil, false, err
	}
	return p, installed, nil
}

func dirHasContent(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// EffectiveTarget resolves the target triple a command should operate
// against: an override file's explicit default target wins, falling back
// to the host triple (spec.md §3 "Partial descriptors missing the target
// are resolved against the host triple").
func EffectiveTarget(ov *OverrideFile) string {
	if ov != nil && len(ov.Targets) > 0 {
		return ov.Targets[0]
	}
	return target.HostTriple()
}
