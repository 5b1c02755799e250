// Package prefix implements the on-disk layout of an installed toolchain
// and the append-only index of its installed components (spec.md §3, §4.2).
package prefix

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rustup-go/rustup-go/pkg/rlog"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
	"github.com/rustup-go/rustup-go/pkg/transaction"
)

// layoutGeneration is bumped whenever the on-disk metadata format changes
// incompatibly. Prefix.Open refuses to operate on a prefix stamped with any
// generation other than this one, older or newer.
const layoutGeneration = 1

const (
	metadataDirName   = "lib/rustlib"
	binDirName        = "bin"
	libDirName        = "lib"
	configFileName    = "multirust-config.toml"
	channelManifest   = "multirust-channel-manifest.toml"
	generationMarker  = ".layout-generation"
	backupAreaDirName = ".backup"
)

// Prefix owns a filesystem directory holding one installed toolchain. It
// outlives every Transaction, Package, and Components view built on it
// (spec.md §3 "Ownership and lifecycle").
type Prefix struct {
	Root string
}

// Open creates the metadata subdirectory if needed and returns a handle on
// root. It refuses to open a prefix whose existing metadata declares an
// incompatible layout generation.
func Open(root string) (*Prefix, error) {
	meta := filepath.Join(root, metadataDirName)
	if err := os.MkdirAll(meta, 0o755); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, meta, err)
	}
	if err := os.MkdirAll(filepath.Join(root, binDirName), 0o755); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, filepath.Join(root, binDirName), err)
	}
	if err := os.MkdirAll(filepath.Join(root, libDirName), 0o755); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, filepath.Join(root, libDirName), err)
	}

	markerPath := filepath.Join(meta, generationMarker)
	data, err := os.ReadFile(markerPath)
	if err == nil {
		existing := strings.TrimSpace(string(data))
		if existing != "" && existing != fmt.Sprintf("%d", layoutGeneration) {
			return nil, fmt.Errorf("incompatible prefix layout generation %q at %s (expected %d)", existing, root, layoutGeneration)
		}
	} else if os.IsNotExist(err) {
		if err := os.WriteFile(markerPath, []byte(fmt.Sprintf("%d", layoutGeneration)), 0o644); err != nil {
			return nil, rustuperr.WrapOSError(rustuperr.KindCannotWrite, markerPath, err)
		}
	} else {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotRead, markerPath, err)
	}

	p := &Prefix{Root: root}
	p.checkComponentConsistency()
	return p, nil
}

// checkComponentConsistency compares the component list persisted in
// multirust-config.toml against the component directories actually present
// under lib/rustlib, logging a warning (never an error) on any mismatch so
// a hand-edited or partially-migrated prefix is tolerated rather than
// rejected (spec.md §4.2, §7; "Self-consistency check on load"). Either
// side being unreadable is itself best-effort here — Open already
// succeeded, and the normal LoadConfig/List call sites surface a real
// error if a caller actually needs that data.
func (p *Prefix) checkComponentConsistency() {
	cfg, err := p.LoadConfig()
	if err != nil {
		return
	}
	instances, err := p.List()
	if err != nil {
		return
	}

	onDisk := make(map[string]bool, len(instances))
	for _, ci := range instances {
		onDisk[ci.LongName] = true
	}
	configured := make(map[string]bool, len(cfg.Components))
	for _, c := range cfg.Components {
		configured[c.String()] = true
	}

	for name := range onDisk {
		if !configured[name] {
			rlog.Warnf("prefix %s: component %q has files on disk but is not listed in %s", p.Root, name, configFileName)
		}
	}
	for name := range configured {
		if !onDisk[name] {
			rlog.Warnf("prefix %s: component %q is listed in %s but has no files on disk", p.Root, name, configFileName)
		}
	}
}

// MetadataDir returns <root>/lib/rustlib.
func (p *Prefix) MetadataDir() string { return filepath.Join(p.Root, metadataDirName) }

// BinDir returns <root>/bin.
func (p *Prefix) BinDir() string { return filepath.Join(p.Root, binDirName) }

// LibDir returns <root>/lib.
func (p *Prefix) LibDir() string { return filepath.Join(p.Root, libDirName) }

// BackupDir returns the scratch area a Transaction over this prefix should
// use to stash originals.
func (p *Prefix) BackupDir() string { return filepath.Join(p.MetadataDir(), backupAreaDirName) }

// BinaryPath returns the path a proxied executable named stem would live at.
func (p *Prefix) BinaryPath(stem string) string {
	return filepath.Join(p.BinDir(), stem)
}

// NewTransaction opens a Transaction scoped to this prefix.
func (p *Prefix) NewTransaction() (*transaction.Transaction, error) {
	return transaction.New(p.Root, p.BackupDir())
}

// ChannelManifestPath is where the last successfully installed v2 manifest
// is kept verbatim.
func (p *Prefix) ChannelManifestPath() string {
	return filepath.Join(p.MetadataDir(), channelManifest)
}

// ConfigPath is where the installed-component list is persisted.
func (p *Prefix) ConfigPath() string {
	return filepath.Join(p.MetadataDir(), configFileName)
}

// ComponentDir returns the metadata subdirectory for a named component.
func (p *Prefix) ComponentDir(longName string) string {
	return filepath.Join(p.MetadataDir(), longName)
}

// ComponentManifestInRelPath returns the path, relative to Root, of a
// component's manifest.in — the relpath an Unpacker must use when writing
// it through a Transaction.
func (p *Prefix) ComponentManifestInRelPath(longName string) string {
	return filepath.Join(metadataDirName, longName, "manifest.in")
}

// ComponentInstance is one component's installed, on-disk record: its
// manifest.in entries, which are authoritative for file ownership
// (spec.md §3 "Config").
type ComponentInstance struct {
	LongName string
	prefix   *Prefix
	entries  []ManifestInEntry
}

// List enumerates installed components by reading metadata directory
// entries (spec.md §4.2 "list()").
func (p *Prefix) List() ([]*ComponentInstance, error) {
	meta := p.MetadataDir()
	dirEntries, err := os.ReadDir(meta)
	if err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotRead, meta, err)
	}
	var out []*ComponentInstance
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		manifestInPath := filepath.Join(meta, de.Name(), "manifest.in")
		if _, err := os.Stat(manifestInPath); err != nil {
			continue // not a component dir (e.g. .backup)
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		ci, err := p.loadComponent(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, nil
}

// Find locates an installed component by its long (pkg-target) name.
// Short-name lookup (e.g. "rustc" matching "rustc-x86_64-unknown-linux-gnu")
// is performed by the caller using the host/selected target, since Prefix
// itself has no notion of "current target".
func (p *Prefix) Find(longName string) (*ComponentInstance, error) {
	manifestInPath := filepath.Join(p.ComponentDir(longName), "manifest.in")
	if _, err := os.Stat(manifestInPath); err != nil {
		return nil, nil
	}
	return p.loadComponent(longName)
}

func (p *Prefix) loadComponent(longName string) (*ComponentInstance, error) {
	path := filepath.Join(p.ComponentDir(longName), "manifest.in")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotRead, path, err)
	}
	entries, err := ParseManifestIn(string(data))
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", longName, err)
	}
	return &ComponentInstance{LongName: longName, prefix: p, entries: entries}, nil
}

// Uninstall walks the component's manifest.in in reverse, issuing
// remove-file/remove-dir/remove-dir-if-empty operations through tx.
// Uninstall is idempotent: missing files do not fail the operation.
// warn is called for every entry whose target was already missing.
func (ci *ComponentInstance) Uninstall(tx *transaction.Transaction, warn func(string)) error {
	for i := len(ci.entries) - 1; i >= 0; i-- {
		e := ci.entries[i]
		switch e.Verb {
		case VerbFile:
			if err := tx.RemoveFile(e.Path); err != nil {
				if os.IsNotExist(err) {
					if warn != nil {
						warn(fmt.Sprintf("file not found during uninstall (already removed?): %s", e.Path))
					}
					continue
				}
				return err
			}
		case VerbDir:
			if err := tx.RemoveDir(e.Path); err != nil {
				if os.IsNotExist(err) {
					if warn != nil {
						warn(fmt.Sprintf("directory not found during uninstall: %s", e.Path))
					}
					continue
				}
				return err
			}
		case VerbMove:
			if err := tx.RemoveDirIfEmpty(e.Path); err != nil {
				return err
			}
		}
	}
	manifestInRel := ci.prefix.ComponentManifestInRelPath(ci.LongName)
	if err := tx.RemoveFile(manifestInRel); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
