package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/rustup-go/rustup-go/internal/target"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

const expectedManifestVersion = "2"

var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Parse validates and converts manifest text into the domain model,
// enforcing every invariant in spec.md §3: version, hash format, triple
// well-formedness, and component/rename cross-references.
func Parse(text string) (*Manifest, error) {
	var wire wireManifest
	if err := toml.Unmarshal([]byte(text), &wire); err != nil {
		return nil, rustuperr.ManifestParseError(byteOffsetOf(text, err), err.Error())
	}

	if wire.ManifestVersion != expectedManifestVersion {
		return nil, rustuperr.New(rustuperr.KindUnsupportedManifestVersn,
			fmt.Sprintf("unsupported manifest version %q (expected %q)", wire.ManifestVersion, expectedManifestVersion))
	}

	m := New(wire.Date)
	for name, wp := range wire.Pkg {
		pkg := &Package{Version: wp.Version, Target: map[string]*TargetedPackage{}}
		for triple, wtp := range wp.Target {
			if _, err := target.Parse(triple); err != nil {
				return nil, rustuperr.ManifestParseError(0, err.Error())
			}
			if wtp.Hash != "" && !hexHash.MatchString(wtp.Hash) {
				return nil, rustuperr.ManifestParseError(0,
					fmt.Sprintf("hash for %s/%s is not 64 lowercase hex characters", name, triple))
			}
			pkg.Target[triple] = &TargetedPackage{
				Available:  wtp.Available,
				URL:        wtp.URL,
				Hash:       wtp.Hash,
				XZURL:      wtp.XZURL,
				XZHash:     wtp.XZHash,
				ZstURL:     wtp.ZstURL,
				ZstHash:    wtp.ZstHash,
				Components: fromWireComponents(wtp.Components),
				Extensions: fromWireComponents(wtp.Extensions),
			}
		}
		m.Pkg[name] = pkg
	}
	for oldName, r := range wire.Renames {
		m.Renames[oldName] = r.To
	}
	for profile, pkgs := range wire.Profiles {
		m.Profiles[profile] = append([]string(nil), pkgs...)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// validate enforces the cross-reference invariants of spec.md §3:
// every component/extension resolves to a package entry; a rename's
// source must not be a package and its target must be one.
func (m *Manifest) validate() error {
	for pkgName, pkg := range m.Pkg {
		for triple, tp := range pkg.Target {
			for _, c := range append(append([]Component{}, tp.Components...), tp.Extensions...) {
				if _, ok := m.Pkg[c.Pkg]; !ok {
					return fmt.Errorf("missing-package: component %s references nonexistent package %q (declared under %s/%s)",
						c, c.Pkg, pkgName, triple)
				}
			}
		}
	}
	for oldName, newName := range m.Renames {
		if _, ok := m.Pkg[oldName]; ok {
			return fmt.Errorf("malformed-manifest: rename source %q must not also be a package", oldName)
		}
		if _, ok := m.Pkg[newName]; !ok {
			return fmt.Errorf("missing-package: rename target %q does not exist", newName)
		}
	}
	return nil
}

// byteOffsetOf best-effort converts a go-toml DecodeError's line/column
// position into a byte offset within text, for the malformed-manifest error
// contract (spec.md §4.1: "byte offset for structural issues").
func byteOffsetOf(text string, err error) int {
	de, ok := err.(interface{ Position() (int, int) })
	if !ok {
		return 0
	}
	row, col := de.Position()
	lines := strings.Split(text, "\n")
	offset := 0
	for i := 0; i < row-1 && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}
	return offset + col - 1
}
