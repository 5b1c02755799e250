//go:build !unix

package proxy

import (
	"os"
	"os/exec"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// ReplaceProcess has no true exec() on this platform; it runs path as a
// child, waits for it, and carries its exit code out via os.Exit, which is
// as close to process replacement as non-Unix can get.
func ReplaceProcess(path string, args []string, env []string) error {
	cmd := exec.Command(path, args...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return rustuperr.CannotSpawn(path, err)
	}
	os.Exit(0)
	return nil
}
