// Package archive implements the Package/Unpacker responsibility of
// spec.md §4.4: given a compressed archive and a prefix+transaction,
// install a named component.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archiver/v3"

	"github.com/rustup-go/rustup-go/pkg/diskio"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
	"github.com/rustup-go/rustup-go/pkg/transaction"
)

// installChunkSize bounds how much of any one payload file is held in
// memory at a time while streaming it into the executor (spec.md §4.4
// "constant memory", §4.5 "bounded chunks").
const installChunkSize = 256 * 1024

// supportedInstallerVersion is the only rust-installer-version this
// Unpacker understands; anything else fails with unsupported-installer
// (spec.md §4.4 "A version file declares the installer-format version").
const supportedInstallerVersion = "3"

// Package is a downloaded, not-yet-installed archive: gzip-, xz-, or
// zstd-compressed tar, streamed via mholt/archiver/v3 so memory use is
// constant with respect to archive size (spec.md §4.4).
type Package struct {
	path string // local filesystem path to the archive
}

// Open wraps an already-downloaded archive file. The concrete compression
// format is sniffed from the file extension by archiver.Walk itself, the
// same way the teacher's helpers.Archiver.Extract delegates format
// detection to archiver.Walk(source, walkFn).
func Open(path string) (*Package, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotRead, path, err)
	}
	return &Package{path: path}, nil
}

// inspect walks the archive's metadata files only (rust-installer-version,
// components, version), validating the layout contract (spec.md §4.4
// "Archive layout contract") and returning the installer name and its
// declared component list. It never reads payload file contents, so its
// memory use does not grow with archive size; Install does a second,
// dedicated walk to stream the payload itself.
func (p *Package) inspect() (installerName string, components []string, err error) {
	var (
		topSeen       bool
		componentsRaw []byte
		versionRaw    []byte
	)

	walkErr := archiver.Walk(p.path, func(f archiver.File) error {
		defer f.Close()

		name := entryPath(f)
		parts := strings.SplitN(name, "/", 2)
		if !topSeen {
			installerName = parts[0]
			topSeen = true
		}
		if len(parts) < 2 || parts[1] == "" {
			return nil // the top-level directory entry itself
		}
		rest := parts[1]

		switch rest {
		case "rust-installer-version":
			data, rerr := io.ReadAll(f)
			if rerr != nil {
				return rerr
			}
			if strings.TrimSpace(string(data)) != supportedInstallerVersion {
				return rustuperr.New(rustuperr.KindUnsupportedInstaller,
					fmt.Sprintf("unsupported installer format version %q", strings.TrimSpace(string(data))))
			}
		case "components":
			data, rerr := io.ReadAll(f)
			if rerr != nil {
				return rerr
			}
			componentsRaw = data
		case "version":
			data, rerr := io.ReadAll(f)
			if rerr != nil {
				return rerr
			}
			versionRaw = data
		}
		return nil
	})
	if walkErr != nil {
		if rerr, ok := walkErr.(*rustuperr.Error); ok {
			return "", nil, rerr
		}
		return "", nil, rustuperr.New(rustuperr.KindCorruptComponent,
			fmt.Sprintf("failed to walk archive %s: %v", p.path, walkErr))
	}
	if !topSeen {
		return "", nil, rustuperr.New(rustuperr.KindCorruptComponent, "archive has no top-level installer directory")
	}
	if componentsRaw == nil {
		return "", nil, rustuperr.New(rustuperr.KindCorruptComponent, "archive missing 'components' file")
	}
	_ = versionRaw // the semver is informational; not enforced here

	for _, line := range strings.Split(string(componentsRaw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			components = append(components, line)
		}
	}
	sort.Strings(components)
	return installerName, components, nil
}

// entryPath returns a walked entry's full path inside the tarball, without
// a leading "./" or a trailing "/". archiver.File.Name() is only the
// entry's base name, so the path is taken from the tar header.
func entryPath(f archiver.File) string {
	name := f.Name()
	if hdr, ok := f.Header.(*tar.Header); ok {
		name = hdr.Name
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "./"), "/")
}

// Components names discovered in the archive's top-level directory
// entries (spec.md §4.4 "components()").
func (p *Package) Components() ([]string, error) {
	_, components, err := p.inspect()
	return components, err
}

// Contains reports whether the archive's component manifest lists either
// name (spec.md §4.4 "contains()").
func (p *Package) Contains(longName, shortName string) (bool, error) {
	components, err := p.Components()
	if err != nil {
		return false, err
	}
	for _, c := range components {
		if c == longName || (shortName != "" && c == shortName) {
			return true, nil
		}
	}
	return false, nil
}

// Install streams the archive's entries for the named component directly
// from the still-open archive reader into executor, computing for each
// entry a destination relpath within the prefix. Directory creation and
// file leasing still go through tx so rollback bookkeeping is unchanged;
// the actual bytes of every payload file are handed to executor in
// bounded chunks rather than read fully into memory first (spec.md §4.4
// "streaming, constant memory", §4.5 "Executor bound"). The component's
// manifest.in is written as the last entry; failure before that
// guarantees rollback (spec.md §4.4 "install()").
func (p *Package) Install(pfx *prefix.Prefix, longName, shortName string, tx *transaction.Transaction, executor *diskio.Executor) error {
	_, components, err := p.inspect()
	if err != nil {
		return err
	}
	selected := ""
	for _, c := range components {
		if c == longName {
			selected = longName
			break
		}
	}
	if selected == "" && shortName != "" {
		for _, c := range components {
			if c == shortName {
				selected = shortName
				break
			}
		}
	}
	if selected == "" {
		return rustuperr.New(rustuperr.KindUnknownComponent,
			fmt.Sprintf("archive does not contain component %q", longName))
	}

	compPrefix := selected + "/"
	var manifestEntries []prefix.ManifestInEntry

	walkErr := archiver.Walk(p.path, func(f archiver.File) error {
		defer f.Close()

		name := entryPath(f)
		parts := strings.SplitN(name, "/", 2)
		if len(parts) < 2 || parts[1] == "" {
			return nil // the top-level directory entry itself
		}
		rest := parts[1]
		if !strings.HasPrefix(rest, compPrefix) {
			return nil // belongs to a different component, or is top-level metadata
		}
		destRel := strings.TrimPrefix(rest, compPrefix)
		if destRel == "" || destRel == "manifest.in" {
			return nil // the component's own manifest.in is synthesized below, not copied verbatim
		}

		if f.IsDir() {
			if err := tx.AddDir(destRel); err != nil {
				return err
			}
			manifestEntries = append(manifestEntries, prefix.ManifestInEntry{Verb: prefix.VerbMove, Path: destRel})
			return nil
		}

		absPath, err := tx.LeaseFile(destRel)
		if err != nil {
			return err
		}
		if err := streamFileIntoDisk(executor, absPath, f.Mode(), f); err != nil {
			return rustuperr.WrapOSError(rustuperr.KindCannotWrite, filepath.Join(pfx.Root, destRel), err)
		}
		manifestEntries = append(manifestEntries, prefix.ManifestInEntry{Verb: prefix.VerbFile, Path: destRel})
		return nil
	})
	if walkErr != nil {
		if rerr, ok := walkErr.(*rustuperr.Error); ok {
			return rerr
		}
		return rustuperr.New(rustuperr.KindCorruptComponent,
			fmt.Sprintf("failed to walk archive %s: %v", p.path, walkErr))
	}

	if len(manifestEntries) == 0 {
		return rustuperr.New(rustuperr.KindCorruptComponent,
			fmt.Sprintf("component %q contributed no files", selected))
	}

	manifestInRel := pfx.ComponentManifestInRelPath(longName)
	w, err := tx.AddFile(manifestInRel)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = io.WriteString(w, prefix.WriteManifestIn(manifestEntries))
	return err
}

// streamFileIntoDisk reads src in installChunkSize pieces obtained from
// executor's shared, budget-gated buffer pool and submits them as a single
// IncrementalFile item, so a large payload file is never buffered whole
// either on the read side (GetBuffer blocks once the budget is exhausted)
// or the write side (executor owns the destination handle). The read
// loop runs in its own goroutine so this works whether executor is the
// pooled, asynchronous form or the workers<=1 immediate form, whose
// Submit runs the write inline and would otherwise deadlock waiting on a
// chunk this goroutine hadn't produced yet.
func streamFileIntoDisk(executor *diskio.Executor, absPath string, mode os.FileMode, src io.Reader) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		for {
			buf, err := executor.GetBuffer(installChunkSize)
			if err != nil {
				readErr <- err
				return
			}
			n, rerr := src.Read(buf)
			if n > 0 {
				chunks <- buf[:n]
			} else {
				executor.ReleaseBuffer(buf)
			}
			if rerr == io.EOF {
				readErr <- nil
				return
			}
			if rerr != nil {
				readErr <- rerr
				return
			}
		}
	}()

	executor.Submit(&diskio.Item{
		Kind:     diskio.IncrementalFile,
		Path:     absPath,
		Mode:     mode,
		Priority: diskio.Normal,
		Chunks:   chunks,
	})

	// Always drain exactly one result per submitted item, in either order,
	// so a read-side failure never leaves a stale Result for the next file
	// to mistakenly consume off the shared Completed() channel.
	writeResult := <-executor.Completed()
	if rerr := <-readErr; rerr != nil {
		return rerr
	}
	return writeResult.Err
}
