package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustup-go/rustup-go/pkg/rconfig"
)

func TestResolveExplicitWins(t *testing.T) {
	t.Setenv(rconfig.EnvToolchain, "nightly")
	res, err := Resolve("stable", t.TempDir(), &rconfig.Settings{DefaultToolchain: "beta"})
	require.NoError(t, err)
	assert.Equal(t, "stable", res.Name)
	assert.Equal(t, SourceExplicit, res.Source)
}

func TestResolveEnvBeatsDefault(t *testing.T) {
	t.Setenv(rconfig.EnvToolchain, "nightly")
	res, err := Resolve("", t.TempDir(), &rconfig.Settings{DefaultToolchain: "beta"})
	require.NoError(t, err)
	assert.Equal(t, "nightly", res.Name)
	assert.Equal(t, SourceEnv, res.Source)
}

func TestResolveDirectoryOverrideBare(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust-toolchain"), []byte("1.75.0\n"), 0o644))

	res, err := Resolve("", dir, &rconfig.Settings{DefaultToolchain: "beta"})
	require.NoError(t, err)
	assert.Equal(t, "1.75.0", res.Name)
	assert.Equal(t, SourceOverride, res.Source)
}

func TestResolveDirectoryOverrideTOML(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	content := "[toolchain]\nchannel = \"nightly-2024-01-02\"\ntargets = [\"wasm32-unknown-unknown\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust-toolchain.toml"), []byte(content), 0o644))

	res, err := Resolve("", sub, &rconfig.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "nightly-2024-01-02", res.Name)
	assert.Equal(t, SourceOverride, res.Source)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	res, err := Resolve("", t.TempDir(), &rconfig.Settings{DefaultToolchain: "stable"})
	require.NoError(t, err)
	assert.Equal(t, "stable", res.Name)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolveNoDefaultFails(t *testing.T) {
	_, err := Resolve("", t.TempDir(), &rconfig.Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no default toolchain")
}

func TestEffectiveTargetFallsBackToHost(t *testing.T) {
	got := EffectiveTarget(nil)
	assert.NotEmpty(t, got)
}

func TestEffectiveTargetUsesOverride(t *testing.T) {
	got := EffectiveTarget(&OverrideFile{Targets: []string{"wasm32-unknown-unknown"}})
	assert.Equal(t, "wasm32-unknown-unknown", got)
}
