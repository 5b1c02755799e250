package proxy

import (
	"context"
	"os"
	"os/exec"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// Spawn runs path as a child process, connecting its standard streams to
// the caller's, and returns once it exits. Unlike ReplaceProcess it does
// not replace the calling process, which makes it the one used in tests
// and anywhere the caller needs to keep running afterward.
func Spawn(ctx context.Context, path string, args []string, env []string) (exitCode int, err error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()
	if runErr == nil {
		return 0, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, rustuperr.CannotSpawn(path, runErr)
}
