package archive

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustup-go/rustup-go/pkg/diskio"
	"github.com/rustup-go/rustup-go/pkg/prefix"
)

type tarEntry struct {
	name string
	dir  bool
	body string
}

func buildTarGz(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, e := range entries {
		if e.dir {
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Name:     e.name + "/",
				Typeflag: tar.TypeDir,
				Mode:     0o755,
			}))
			continue
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(e.body)),
		}))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
}

func sampleArchiveEntries() []tarEntry {
	const top = "rustc-nightly-x86_64-unknown-linux-gnu"
	return []tarEntry{
		{name: top, dir: true},
		{name: top + "/rust-installer-version", body: "3"},
		{name: top + "/components", body: "rustc-x86_64-unknown-linux-gnu\n"},
		{name: top + "/version", body: "1.0.0\n"},
		{name: top + "/rustc-x86_64-unknown-linux-gnu", dir: true},
		{name: top + "/rustc-x86_64-unknown-linux-gnu/bin", dir: true},
		{name: top + "/rustc-x86_64-unknown-linux-gnu/bin/rustc", body: "#!/bin/sh\necho stub\n"},
	}
}

func TestComponentsAndContains(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "rustc.tar.gz")
	buildTarGz(t, archivePath, sampleArchiveEntries())

	pkg, err := Open(archivePath)
	require.NoError(t, err)

	components, err := pkg.Components()
	require.NoError(t, err)
	assert.Equal(t, []string{"rustc-x86_64-unknown-linux-gnu"}, components)

	ok, err := pkg.Contains("rustc-x86_64-unknown-linux-gnu", "rustc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pkg.Contains("cargo-x86_64-unknown-linux-gnu", "cargo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInstallWritesFilesAndManifestIn(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "rustc.tar.gz")
	buildTarGz(t, archivePath, sampleArchiveEntries())

	pkg, err := Open(archivePath)
	require.NoError(t, err)

	root := t.TempDir()
	pfx, err := prefix.Open(root)
	require.NoError(t, err)

	tx, err := pfx.NewTransaction()
	require.NoError(t, err)

	executor := diskio.New(2, diskio.DefaultByteBudget())
	defer executor.Close()

	err = pkg.Install(pfx, "rustc-x86_64-unknown-linux-gnu", "rustc", tx, executor)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Done())

	data, err := os.ReadFile(filepath.Join(root, "bin/rustc"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "stub")

	manifestIn, err := os.ReadFile(filepath.Join(pfx.ComponentDir("rustc-x86_64-unknown-linux-gnu"), "manifest.in"))
	require.NoError(t, err)
	assert.Contains(t, string(manifestIn), "file:bin/rustc")
}

func TestInstallRejectsUnknownComponent(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "rustc.tar.gz")
	buildTarGz(t, archivePath, sampleArchiveEntries())

	pkg, err := Open(archivePath)
	require.NoError(t, err)

	root := t.TempDir()
	pfx, err := prefix.Open(root)
	require.NoError(t, err)
	tx, err := pfx.NewTransaction()
	require.NoError(t, err)
	defer tx.Done()

	executor := diskio.New(2, diskio.DefaultByteBudget())
	defer executor.Close()

	err = pkg.Install(pfx, "cargo-x86_64-unknown-linux-gnu", "cargo", tx, executor)
	require.Error(t, err)
}
