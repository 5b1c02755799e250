package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustup-go/rustup-go/internal/target"
	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

func TestStemStripsExeSuffix(t *testing.T) {
	assert.Equal(t, "cargo", Stem("/home/user/.rustup/toolchains/stable/bin/cargo"+target.ExeSuffix()))
}

func TestIsProxiedName(t *testing.T) {
	assert.True(t, IsProxiedName("rustc"))
	assert.True(t, IsProxiedName("cargo-clippy"))
	assert.False(t, IsProxiedName("rustup-go"))
}

func TestLocateBinaryFindsInstalledTool(t *testing.T) {
	pfx, err := prefix.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pfx.BinaryPath("rustc"), []byte("stub"), 0o755))

	path, err := LocateBinary(pfx, "rustc", "stable")
	require.NoError(t, err)
	assert.Equal(t, pfx.BinaryPath("rustc"), path)
}

func TestLocateBinaryReportsToolNotApplicable(t *testing.T) {
	pfx, err := prefix.Open(t.TempDir())
	require.NoError(t, err)

	_, err = LocateBinary(pfx, "some-unknown-tool", "stable")
	require.Error(t, err)
	assert.True(t, rustuperr.IsKind(err, rustuperr.KindToolNotApplicable))
}

func TestLocateBinaryReportsComponentAvailableButNotInstalled(t *testing.T) {
	pfx, err := prefix.Open(t.TempDir())
	require.NoError(t, err)

	m := manifest.New("2024-01-02")
	m.Pkg["rust-analyzer"] = &manifest.Package{
		Version: "1.0.0",
		Target: map[string]*manifest.TargetedPackage{
			"x86_64-unknown-linux-gnu": {Available: true},
		},
	}
	text, err := m.Stringify()
	require.NoError(t, err)

	tx, err := pfx.NewTransaction()
	require.NoError(t, err)
	require.NoError(t, pfx.SaveChannelManifest(tx, text))
	require.NoError(t, tx.Commit())

	_, err = LocateBinary(pfx, "rust-analyzer", "nightly")
	require.Error(t, err)
	assert.True(t, rustuperr.IsKind(err, rustuperr.KindComponentAvailableNotInstalld))
}

func TestBuildChildEnvSetsToolchainAndRecursion(t *testing.T) {
	pfx, err := prefix.Open(t.TempDir())
	require.NoError(t, err)

	parent := []string{"PATH=/usr/bin", "HOME=/home/user"}
	env, err := BuildChildEnv(parent, pfx, "stable", "/opt/manager/bin")
	require.NoError(t, err)

	assertHasPrefix := func(want string) {
		t.Helper()
		for _, kv := range env {
			if kv == want {
				return
			}
		}
		t.Fatalf("expected %q among %v", want, env)
	}
	assertHasPrefix(rconfig.EnvToolchain + "=stable")
	assertHasPrefix(rconfig.EnvRecursionCount + "=1")

	found := false
	for _, kv := range env {
		if kv == "PATH=/opt/manager/bin"+string(os.PathListSeparator)+"/usr/bin" {
			found = true
		}
	}
	assert.True(t, found, "expected manager bin dir prepended to PATH, got %v", env)
}

func TestBuildChildEnvRejectsExcessiveRecursion(t *testing.T) {
	pfx, err := prefix.Open(t.TempDir())
	require.NoError(t, err)

	parent := []string{rconfig.EnvRecursionCount + "=20"}
	_, err = BuildChildEnv(parent, pfx, "stable", "/opt/manager/bin")
	require.Error(t, err)
	assert.True(t, rustuperr.IsKind(err, rustuperr.KindInfiniteProxyRecursion))
}

func TestBuildChildEnvIncrementsExistingRecursionCount(t *testing.T) {
	pfx, err := prefix.Open(t.TempDir())
	require.NoError(t, err)

	parent := []string{rconfig.EnvRecursionCount + "=3"}
	env, err := BuildChildEnv(parent, pfx, "stable", filepath.Join(t.TempDir(), "bin"))
	require.NoError(t, err)

	assert.Contains(t, env, rconfig.EnvRecursionCount+"=4")
}
