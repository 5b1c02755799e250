package proxy

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustup-go/rustup-go/pkg/rconfig"
)

func TestRunDispatchesToInstalledToolchain(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shebang scripts are unix-only")
	}

	home := t.TempDir()
	rcfg := &rconfig.Context{Home: home, DistServer: rconfig.DefaultDistServer}
	settings := &rconfig.Settings{DefaultToolchain: "stable"}

	stablePrefix := filepath.Join(home, "toolchains", "stable")
	require.NoError(t, os.MkdirAll(filepath.Join(stablePrefix, "bin"), 0o755))
	script := "#!/bin/sh\necho hello-from-rustc\n"
	require.NoError(t, os.WriteFile(filepath.Join(stablePrefix, "bin", "rustc"), []byte(script), 0o755))

	exitCode, err := Run(context.Background(), []string{"rustc"}, os.Environ(), rcfg, settings)
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
}

func TestRunFailsWhenToolchainNotInstalled(t *testing.T) {
	home := t.TempDir()
	rcfg := &rconfig.Context{Home: home, DistServer: rconfig.DefaultDistServer}
	settings := &rconfig.Settings{DefaultToolchain: "nightly"}

	_, err := Run(context.Background(), []string{"cargo"}, os.Environ(), rcfg, settings)
	require.Error(t, err)
}
