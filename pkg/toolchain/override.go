package toolchain

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	overrideFileName     = "rust-toolchain"
	overrideTOMLFileName = "rust-toolchain.toml"
)

// OverrideFile is the decoded contents of a directory's toolchain pin
// (spec.md §6 "Toolchain override file"): either a bare toolchain name or
// a small TOML table.
type OverrideFile struct {
	Channel    string   `toml:"channel"`
	Components []string `toml:"components,omitempty"`
	Targets    []string `toml:"targets,omitempty"`
	Profile    string   `toml:"profile,omitempty"`
}

type wireOverrideFile struct {
	Toolchain OverrideFile `toml:"toolchain"`
}

// FindOverride walks from dir up through every ancestor looking for
// rust-toolchain.toml or rust-toolchain, returning the first match and
// its path, or (nil, nil) if none exists anywhere above dir.
func FindOverride(dir string) (path string, ov *OverrideFile, err error) {
	current, absErr := filepath.Abs(dir)
	if absErr != nil {
		current = dir
	}
	for {
		tomlPath := filepath.Join(current, overrideTOMLFileName)
		if data, readErr := os.ReadFile(tomlPath); readErr == nil {
			parsed, perr := ParseOverrideTOML(string(data))
			if perr != nil {
				return tomlPath, nil, perr
			}
			return tomlPath, parsed, nil
		}

		barePath := filepath.Join(current, overrideFileName)
		if data, readErr := os.ReadFile(barePath); readErr == nil {
			name := strings.TrimSpace(string(data))
			if name != "" {
				return barePath, &OverrideFile{Channel: name}, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil, nil
		}
		current = parent
	}
}

// ParseOverrideTOML decodes a rust-toolchain.toml document's [toolchain]
// table (spec.md §6: "channel required, optional components/targets/profile").
func ParseOverrideTOML(text string) (*OverrideFile, error) {
	var wire wireOverrideFile
	if err := toml.Unmarshal([]byte(text), &wire); err != nil {
		return nil, err
	}
	return &wire.Toolchain, nil
}
