package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
manifest-version = "2"
date = "2015-01-02"

[pkg.rustc]
version = "1.0.0 (abcdef 2015-01-02)"

[pkg.rustc.target.x86_64-unknown-linux-gnu]
available = true
url = "https://example.com/dist/2015-01-02/rustc-nightly-x86_64-unknown-linux-gnu.tar.gz"
hash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

[pkg.cargo]
version = "0.1.0"

[pkg.cargo.target.x86_64-unknown-linux-gnu]
available = true
url = "https://example.com/dist/2015-01-02/cargo-nightly-x86_64-unknown-linux-gnu.tar.gz"
hash = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

[pkg.rust]
version = "1.0.0"

[pkg.rust.target.x86_64-unknown-linux-gnu]
available = true
url = "https://example.com/dist/2015-01-02/rust-nightly-x86_64-unknown-linux-gnu.tar.gz"
hash = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
components = [
  { pkg = "rustc", target = "x86_64-unknown-linux-gnu" },
  { pkg = "cargo", target = "x86_64-unknown-linux-gnu" },
]
extensions = [
  { pkg = "rustc", target = "i686-unknown-linux-gnu" },
]

[profiles]
minimal = ["rustc"]
default = ["rustc", "cargo"]
`

func TestParseValidManifest(t *testing.T) {
	m, err := Parse(sampleManifest)
	require.NoError(t, err)
	assert.Equal(t, "2015-01-02", m.Date)
	assert.Len(t, m.Pkg, 3)

	rustPkg, err := m.GetRustPkgForTarget("x86_64-unknown-linux-gnu")
	require.NoError(t, err)
	assert.True(t, rustPkg.Available)
	assert.Len(t, rustPkg.Components, 2)
}

func TestRoundTrip(t *testing.T) {
	m, err := Parse(sampleManifest)
	require.NoError(t, err)

	text, err := m.Stringify()
	require.NoError(t, err)

	m2, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, m.Date, m2.Date)
	assert.Equal(t, len(m.Pkg), len(m2.Pkg))
	for name, pkg := range m.Pkg {
		pkg2, ok := m2.Pkg[name]
		require.True(t, ok)
		assert.Equal(t, pkg.Version, pkg2.Version)
		for triple, tp := range pkg.Target {
			tp2, ok := pkg2.Target[triple]
			require.True(t, ok)
			assert.Equal(t, tp.Hash, tp2.Hash)
			assert.ElementsMatch(t, tp.Components, tp2.Components)
		}
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	text := strings.Replace(sampleManifest, `manifest-version = "2"`, `manifest-version = "3"`, 1)
	_, err := Parse(text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported manifest version")
}

func TestParseRejectsMissingPackageReference(t *testing.T) {
	text := sampleManifest + "\n" + `
[pkg.rust.target.x86_64-unknown-linux-gnu]
components = [ { pkg = "does-not-exist", target = "x86_64-unknown-linux-gnu" } ]
`
	_, err := Parse(text)
	require.Error(t, err)
}

func TestParseRejectsBadHash(t *testing.T) {
	text := strings.Replace(sampleManifest,
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"not-a-hash", 1)
	_, err := Parse(text)
	require.Error(t, err)
}

func TestComponentOrdering(t *testing.T) {
	cs := []Component{
		{Pkg: "rust-std", Target: "i686-unknown-linux-gnu"},
		{Pkg: "cargo", Target: "x86_64-unknown-linux-gnu"},
		{Pkg: "cargo", Target: "i686-unknown-linux-gnu"},
	}
	SortComponents(cs)
	assert.Equal(t, "cargo", cs[0].Pkg)
	assert.Equal(t, "i686-unknown-linux-gnu", cs[0].Target)
	assert.Equal(t, "cargo", cs[1].Pkg)
	assert.Equal(t, "x86_64-unknown-linux-gnu", cs[1].Target)
	assert.Equal(t, "rust-std", cs[2].Pkg)
}

func TestV1FindForTarget(t *testing.T) {
	v1 := ParseV1("rust-nightly-x86_64-unknown-linux-gnu.tar.gz\nrust-nightly-i686-unknown-linux-gnu.tar.gz\n")
	name, err := v1.FindForTarget("x86_64-unknown-linux-gnu")
	require.NoError(t, err)
	assert.Equal(t, "rust-nightly-x86_64-unknown-linux-gnu.tar.gz", name)

	_, err = v1.FindForTarget("sparc-unknown-linux-gnu")
	require.Error(t, err)
}
