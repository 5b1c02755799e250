package proxy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

// Run implements the full proxy path (spec.md §4.9): resolve which
// toolchain argv[0]'s invocation belongs to, locate the proxied tool
// inside it, and spawn it with an environment pointing back at that
// toolchain. It returns the child's exit code; it does not replace the
// calling process (see ReplaceProcess for that).
func Run(ctx context.Context, argv []string, env []string, rcfg *rconfig.Context, settings *rconfig.Settings) (int, error) {
	if len(argv) == 0 {
		return 1, rustuperr.New(rustuperr.KindCannotSpawn, "empty argv")
	}
	stem := Stem(argv[0])

	cwd, err := os.Getwd()
	if err != nil {
		return 1, err
	}

	res, err := toolchain.Resolve("", cwd, settings)
	if err != nil {
		return 1, err
	}

	pfx, installed, err := toolchain.Prefix(rcfg.Home, res.Name)
	if err != nil {
		return 1, err
	}
	if !installed {
		return 1, rustuperr.New(rustuperr.KindToolNotFoundInToolchain,
			"toolchain '"+res.Name+"' is not installed; run `toolchain install "+res.Name+"`")
	}

	binPath, err := LocateBinary(pfx, stem, res.Name)
	if err != nil {
		return 1, err
	}

	managerBinDir, err := managerBinDirectory()
	if err != nil {
		return 1, err
	}

	childEnv, err := BuildChildEnv(env, pfx, res.Name, managerBinDir)
	if err != nil {
		return 1, err
	}

	return Spawn(ctx, binPath, argv[1:], childEnv)
}

func managerBinDirectory() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(self), nil
}
