//go:build unix

package proxy

import (
	"golang.org/x/sys/unix"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// ReplaceProcess execs path in place of the current process (true argv[0]
// replacement, matching how rustup's own proxy binaries behave). It never
// returns on success; on failure it returns a tagged spawn error.
func ReplaceProcess(path string, args []string, env []string) error {
	argv := append([]string{path}, args...)
	if err := unix.Exec(path, argv, env); err != nil {
		return rustuperr.CannotSpawn(path, err)
	}
	return nil
}
