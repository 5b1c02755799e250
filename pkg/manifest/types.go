// Package manifest implements the distribution manifest model: parsing,
// validation, and read-only queries over a release description (spec.md
// §3, §4.1). A Manifest is an immutable value once parsed.
package manifest

import (
	"fmt"
	"sort"
)

// Component identifies a named unit of installation: a package plus the
// target it applies to (or the wildcard target for target-independent
// components such as source code). Equality is structural; ordering is
// lexicographic on the pair.
type Component struct {
	Pkg    string
	Target string
}

func (c Component) String() string {
	return fmt.Sprintf("%s-%s", c.Pkg, c.Target)
}

// Less implements the lexicographic ordering used for deterministic
// serialization (spec.md §4.1 "Table ordering ... deterministic").
func (c Component) Less(o Component) bool {
	if c.Pkg != o.Pkg {
		return c.Pkg < o.Pkg
	}
	return c.Target < o.Target
}

// SortComponents sorts a slice of Component in place per Component.Less.
func SortComponents(cs []Component) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Less(cs[j]) })
}

// TargetedPackage is one package's offering for one target triple.
type TargetedPackage struct {
	Available  bool
	URL        string
	Hash       string
	XZURL      string
	XZHash     string
	ZstURL     string
	ZstHash    string
	Components []Component
	Extensions []Component
}

// BestArchive returns the URL/hash pair for the most compressed archive
// format this TargetedPackage offers, preferring zstd over xz over gzip
// (spec.md §4.1: "consumer must prefer the most compressed supported
// format"). The returned format name is one of "zst", "xz", "gz".
func (p *TargetedPackage) BestArchive() (format, url, hash string) {
	if p.ZstURL != "" && p.ZstHash != "" {
		return "zst", p.ZstURL, p.ZstHash
	}
	if p.XZURL != "" && p.XZHash != "" {
		return "xz", p.XZURL, p.XZHash
	}
	return "gz", p.URL, p.Hash
}

// Package is one named release component (e.g. "rustc", "cargo", "rust")
// with a version and a per-target offering.
type Package struct {
	Version string
	Target  map[string]*TargetedPackage
}

// Manifest is the fully parsed, validated v2 release description.
type Manifest struct {
	Date     string
	Pkg      map[string]*Package
	Renames  map[string]string // old name -> new name
	Profiles map[string][]string
}

// New returns an empty, valid Manifest (used by tests and by synthesizing a
// v1 fallback combined-package manifest).
func New(date string) *Manifest {
	return &Manifest{
		Date:     date,
		Pkg:      map[string]*Package{},
		Renames:  map[string]string{},
		Profiles: map[string][]string{},
	}
}

// GetPackage returns the named package or a missing-package error.
func (m *Manifest) GetPackage(name string) (*Package, error) {
	p, ok := m.Pkg[name]
	if !ok {
		return nil, fmt.Errorf("missing-package: package %q not found in manifest", name)
	}
	return p, nil
}

// GetRustPkgForTarget returns the combined meta-package ("rust") that pins
// the default component set for the given target (spec.md §4.1
// get_rust_pkg_for).
func (m *Manifest) GetRustPkgForTarget(target string) (*TargetedPackage, error) {
	pkg, err := m.GetPackage("rust")
	if err != nil {
		return nil, err
	}
	tp, ok := pkg.Target[target]
	if !ok {
		return nil, fmt.Errorf("missing-package: no 'rust' package offering for target %q", target)
	}
	return tp, nil
}

// RenameTarget follows a single rename hop for a component's package name,
// returning the possibly-renamed name unchanged if no rename applies.
func (m *Manifest) RenameTarget(pkgName string) string {
	if newName, ok := m.Renames[pkgName]; ok {
		return newName
	}
	return pkgName
}

// Equal reports whether two manifests are semantically identical. The
// planner (spec.md §4.6 step 4) uses this to decide between an incremental
// diff and a full reinstall; date plus package set is a sufficient and
// cheap proxy for "is this the same release".
func (m *Manifest) Equal(o *Manifest) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Date != o.Date {
		return false
	}
	if len(m.Pkg) != len(o.Pkg) {
		return false
	}
	for name, pkg := range m.Pkg {
		op, ok := o.Pkg[name]
		if !ok || op.Version != pkg.Version {
			return false
		}
	}
	return true
}
