package manifestation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/prefix"
)

const target = "x86_64-unknown-linux-gnu"

func newManifestWithRust(date string, required, extensions []manifest.Component, pkgNames ...string) *manifest.Manifest {
	m := manifest.New(date)
	for _, name := range pkgNames {
		m.Pkg[name] = &manifest.Package{Version: "1.0.0", Target: map[string]*manifest.TargetedPackage{
			target: {Available: true, URL: "https://example.com/" + name, Hash: ""},
		}}
	}
	m.Pkg["rust"] = &manifest.Package{Version: "1.0.0", Target: map[string]*manifest.TargetedPackage{
		target: {Available: true, Components: required, Extensions: extensions},
	}}
	return m
}

func TestComputePlanFreshInstall(t *testing.T) {
	newM := newManifestWithRust("2024-01-02",
		[]manifest.Component{{Pkg: "rustc", Target: target}, {Pkg: "cargo", Target: target}},
		nil,
		"rustc", "cargo")
	cfg := &prefix.Config{}

	plan, err := ComputePlan(nil, newM, target, cfg, Changes{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []manifest.Component{{Pkg: "rustc", Target: target}, {Pkg: "cargo", Target: target}}, plan.ToInstall)
	assert.Empty(t, plan.ToUninstall)
}

func TestComputePlanNoChangesIsUnchanged(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	newM := newManifestWithRust("2024-01-02", required, nil, "rustc")
	cfg := &prefix.Config{Components: required}

	plan, err := ComputePlan(newM, newM, target, cfg, Changes{})
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestComputePlanIncrementalDiffSameManifest(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	extensions := []manifest.Component{{Pkg: "rust-src", Target: "*"}}
	newM := newManifestWithRust("2024-01-02", required, extensions, "rustc", "rust-src")
	cfg := &prefix.Config{Components: required} // rustc already installed

	plan, err := ComputePlan(newM, newM, target, cfg, Changes{
		AddExtensions: []manifest.Component{{Pkg: "rust-src", Target: "*"}},
	})
	require.NoError(t, err)
	assert.Contains(t, plan.ToInstall, manifest.Component{Pkg: "rust-src", Target: "*"})
	assert.NotContains(t, plan.ToUninstall, manifest.Component{Pkg: "rustc", Target: target})
}

func TestComputePlanFullReinstallOnVersionChange(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	oldM := newManifestWithRust("2024-01-01", required, nil, "rustc")
	newM := newManifestWithRust("2024-01-02", required, nil, "rustc")
	cfg := &prefix.Config{Components: required}

	plan, err := ComputePlan(oldM, newM, target, cfg, Changes{})
	require.NoError(t, err)
	assert.ElementsMatch(t, required, plan.ToUninstall)
	assert.ElementsMatch(t, required, plan.ToInstall)
}

func TestComputePlanRejectsUnavailableComponent(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	newM := newManifestWithRust("2024-01-02", required, nil, "rustc")
	newM.Pkg["rustc"].Target[target].Available = false
	cfg := &prefix.Config{}

	_, err := ComputePlan(nil, newM, target, cfg, Changes{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestComputePlanAppliesRenames(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	extensions := []manifest.Component{{Pkg: "rls-preview", Target: target}}
	newM := newManifestWithRust("2024-01-02", required, extensions, "rustc", "rls-preview")
	newM.Renames["rls"] = "rls-preview"
	cfg := &prefix.Config{Components: []manifest.Component{
		{Pkg: "rustc", Target: target},
		{Pkg: "rls", Target: target},
	}}

	plan, err := ComputePlan(newM, newM, target, cfg, Changes{})
	require.NoError(t, err)
	assert.Contains(t, plan.FinalSet, manifest.Component{Pkg: "rls-preview", Target: target})
	assert.NotContains(t, plan.FinalSet, manifest.Component{Pkg: "rls", Target: target})
}

func TestComputePlanResolvesProfile(t *testing.T) {
	newM := newManifestWithRust("2024-01-02",
		[]manifest.Component{{Pkg: "rustc", Target: target}, {Pkg: "cargo", Target: target}, {Pkg: "rust-docs", Target: target}},
		nil,
		"rustc", "cargo", "rust-docs")
	newM.Profiles["minimal"] = []string{"rustc", "cargo"}
	cfg := &prefix.Config{}

	plan, err := ComputePlan(nil, newM, target, cfg, Changes{Profile: "minimal"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []manifest.Component{{Pkg: "rustc", Target: target}, {Pkg: "cargo", Target: target}}, plan.ToInstall)
	assert.NotContains(t, plan.FinalSet, manifest.Component{Pkg: "rust-docs", Target: target})
}

func TestComputePlanRejectsUnknownProfile(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	newM := newManifestWithRust("2024-01-02", required, nil, "rustc")
	cfg := &prefix.Config{}

	_, err := ComputePlan(nil, newM, target, cfg, Changes{Profile: "nonexistent"})
	require.Error(t, err)
}

func TestComputePlanPreconditionRejectsBogusAddExtension(t *testing.T) {
	required := []manifest.Component{{Pkg: "rustc", Target: target}}
	newM := newManifestWithRust("2024-01-02", required, nil, "rustc")
	cfg := &prefix.Config{}

	_, err := ComputePlan(nil, newM, target, cfg, Changes{
		AddExtensions: []manifest.Component{{Pkg: "does-not-exist", Target: target}},
	})
	require.Error(t, err)
}
