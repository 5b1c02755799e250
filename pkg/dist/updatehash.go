package dist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// Outcome mirrors the planner's Outcome contract at the manifest-fetch
// boundary: either the toolchain's manifest is unchanged since the last
// successful update, or it has Changed to a new hash.
type Outcome struct {
	Changed bool
	Hash    string // full sha256 hex of the manifest body
}

// updateHashPath returns the path storing the last-seen manifest hash for
// a toolchain name under updateHashesDir (spec.md §4.7, persisted state
// described in §6 under rconfig.Context.UpdateHashesDir).
func updateHashPath(updateHashesDir, toolchainName string) string {
	return filepath.Join(updateHashesDir, toolchainName)
}

// FetchManifestWithShortCircuit downloads the channel manifest's sha256
// sidecar first; if its leading UpdateHashLength characters match the
// hash stored from the previous successful update, it returns Outcome
// {Changed: false} without ever downloading the manifest body (spec.md
// §4.7 "Update-hash short-circuit"). Otherwise it downloads the manifest
// body, verifies it against the sidecar's full hash, and returns it.
func (c *Client) FetchManifestWithShortCircuit(ctx context.Context, manifestURL, updateHashesDir, toolchainName string) (text string, outcome Outcome, err error) {
	sidecarText, err := c.FetchText(ctx, Sha256URL(manifestURL))
	if err != nil {
		return "", Outcome{}, err
	}
	fullHash, err := ParseSha256Sidecar(sidecarText)
	if err != nil {
		return "", Outcome{}, rustuperr.New(rustuperr.KindManifestParseError, err.Error())
	}
	shortHash := fullHash[:UpdateHashLength]

	path := updateHashPath(updateHashesDir, toolchainName)
	if prev, readErr := os.ReadFile(path); readErr == nil {
		if string(prev) == shortHash {
			return "", Outcome{Changed: false, Hash: fullHash}, nil
		}
	}

	body, err := c.FetchText(ctx, manifestURL)
	if err != nil {
		return "", Outcome{}, err
	}
	sum := sha256.Sum256([]byte(body))
	if actual := hex.EncodeToString(sum[:]); actual != fullHash {
		return "", Outcome{}, rustuperr.ChecksumFailed(manifestURL, fullHash, actual)
	}

	if err := os.MkdirAll(updateHashesDir, 0o755); err != nil {
		return "", Outcome{}, rustuperr.WrapOSError(rustuperr.KindCannotCreate, updateHashesDir, err)
	}
	if err := os.WriteFile(path, []byte(shortHash), 0o644); err != nil {
		return "", Outcome{}, rustuperr.WrapOSError(rustuperr.KindCannotWrite, path, err)
	}

	return body, Outcome{Changed: true, Hash: fullHash}, nil
}
