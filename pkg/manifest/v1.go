package manifest

import (
	"fmt"
	"strings"
)

// V1Manifest is the legacy fallback format: a newline-delimited list of
// installer tarball filenames under a per-channel directory (spec.md §3
// "Manifest (v1)"). Only the combined "rust" package is modeled; there is
// no component granularity.
type V1Manifest struct {
	Filenames []string
}

// ParseV1 parses the plain-text filename listing.
func ParseV1(text string) *V1Manifest {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return &V1Manifest{Filenames: names}
}

// FindForTarget returns the single combined installer filename matching the
// given target triple, e.g. "rust-nightly-x86_64-unknown-linux-gnu.tar.gz".
func (v *V1Manifest) FindForTarget(target string) (string, error) {
	suffix := "-" + target
	for _, name := range v.Filenames {
		trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(name, ".tar.gz"), ".tar.xz"), ".tar.zst")
		if strings.HasSuffix(trimmed, suffix) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unsupported-host: no v1 installer found for target %q", target)
}

// SynthesizeCombined builds a placeholder single-package Manifest standing
// in for the v1 listing, so the planner (spec.md §4.6 "v1 compatibility
// fallback") can treat a v1 install uniformly as "install package rust".
// hash is the caller's best-effort fetch of the archive's .sha256 sidecar
// (v1 has no component granularity of its own); an empty hash means the
// sidecar could not be found and the archive will install unverified.
func SynthesizeCombined(channel, archiveURL, targetTriple, hash string) *Manifest {
	m := New("")
	rustComponent := Component{Pkg: "rust", Target: targetTriple}
	m.Pkg["rust"] = &Package{
		Version: channel,
		Target: map[string]*TargetedPackage{
			targetTriple: {
				Available:  true,
				URL:        archiveURL,
				Hash:       hash,
				Components: []Component{rustComponent},
			},
		},
	}
	return m
}
