package dist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// UpdateHashLength is the number of leading hex characters of the
// manifest's SHA-256 used for the update-hash short-circuit (spec.md §4.7
// "the manifest's 20-character truncated SHA-256").
const UpdateHashLength = 20

// ParseSha256Sidecar extracts the 64-character hex digest from the sidecar
// format "<64 lowercase hex> *<filename>\n" (spec.md §6).
func ParseSha256Sidecar(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty sha256 sidecar")
	}
	digest := fields[0]
	if len(digest) != 64 {
		return "", fmt.Errorf("malformed sha256 sidecar: digest is %d characters, want 64", len(digest))
	}
	return digest, nil
}

// HashFile computes the SHA-256 of the file at path, streaming so memory
// use is constant with respect to file size.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", rustuperr.WrapOSError(rustuperr.KindCannotRead, path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", rustuperr.WrapOSError(rustuperr.KindCannotRead, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
