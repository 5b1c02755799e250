// Package dist implements URL synthesis, download orchestration, and
// update-hash caching against a distribution server (spec.md §4.7).
package dist

import "fmt"

// ManifestURL synthesizes the v2 manifest URL for a channel, optionally
// dated (spec.md §4.7 / §6 "External interfaces").
func ManifestURL(distRoot, channel, date string) string {
	if date == "" {
		return fmt.Sprintf("%s/channel-rust-%s.toml", distRoot, channel)
	}
	return fmt.Sprintf("%s/%s/channel-rust-%s.toml", distRoot, date, channel)
}

// Sha256URL is the sidecar checksum URL for any dist-server artifact URL.
func Sha256URL(artifactURL string) string {
	return artifactURL + ".sha256"
}

// V1ManifestURL synthesizes the legacy plain-text filename listing URL
// used by the v1 compatibility fallback.
func V1ManifestURL(distRoot, channel string) string {
	return fmt.Sprintf("%s/channel-rust-%s", distRoot, channel)
}

// ComponentArchiveURL synthesizes a dated component tarball URL, e.g.
// "<dist-root>/<date>/<pkg>-<channel>-<target>.tar.<ext>".
func ComponentArchiveURL(distRoot, date, pkg, channel, target, ext string) string {
	name := fmt.Sprintf("%s-%s-%s.tar.%s", pkg, channel, target, ext)
	if date == "" {
		return fmt.Sprintf("%s/%s", distRoot, name)
	}
	return fmt.Sprintf("%s/%s/%s", distRoot, date, name)
}
