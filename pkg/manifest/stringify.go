package manifest

import (
	"github.com/pelletier/go-toml/v2"
)

// Stringify round-trips a Manifest back to TOML text. go-toml/v2 sorts map
// keys alphabetically when marshaling, which already gives "packages by
// name, targets by triple" ordering (spec.md §4.1); component/extension
// lists are explicitly sorted here since they are plain slices.
func (m *Manifest) Stringify() (string, error) {
	wire := wireManifest{
		ManifestVersion: expectedManifestVersion,
		Date:            m.Date,
		Pkg:             map[string]*wirePackage{},
		Renames:         map[string]wireRename{},
		Profiles:        map[string][]string{},
	}
	for name, pkg := range m.Pkg {
		wp := &wirePackage{Version: pkg.Version, Target: map[string]*wireTargetedPackage{}}
		for triple, tp := range pkg.Target {
			comps := append([]Component(nil), tp.Components...)
			exts := append([]Component(nil), tp.Extensions...)
			SortComponents(comps)
			SortComponents(exts)
			wp.Target[triple] = &wireTargetedPackage{
				Available:  tp.Available,
				URL:        tp.URL,
				Hash:       tp.Hash,
				XZURL:      tp.XZURL,
				XZHash:     tp.XZHash,
				ZstURL:     tp.ZstURL,
				ZstHash:    tp.ZstHash,
				Components: toWireComponents(comps),
				Extensions: toWireComponents(exts),
			}
		}
		wire.Pkg[name] = wp
	}
	for oldName, newName := range m.Renames {
		wire.Renames[oldName] = wireRename{To: newName}
	}
	for profile, pkgs := range m.Profiles {
		wire.Profiles[profile] = append([]string(nil), pkgs...)
	}

	out, err := toml.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
