// Package manifestation implements the update planner: diffing the
// installed component set against a new manifest to compute a minimal
// install/uninstall plan, then executing that plan transactionally
// (spec.md §4.6).
package manifestation

import (
	"fmt"

	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// Changes is the caller-requested delta on top of whatever the manifest
// itself requires (spec.md §4.6 "changes: {add_extensions, remove_extensions}").
// Profile, if set, replaces the manifest's default component set for a
// first install with a named profile's package list (spec.md's supplemented
// "Profiles" feature) instead of the manifest's own rustPkg.Components.
type Changes struct {
	AddExtensions    []manifest.Component
	RemoveExtensions []manifest.Component
	Profile          string
}

// Plan is the computed install/uninstall set for one update() call.
// FinalSet is the full desired component set, persisted to config.toml on
// a successful Execute.
type Plan struct {
	ToUninstall []manifest.Component
	ToInstall   []manifest.Component
	FinalSet    []manifest.Component
}

// IsEmpty reports whether applying this plan would change nothing on
// disk (spec.md §4.6 step 6 "If both lists are empty -> return Unchanged").
func (p *Plan) IsEmpty() bool {
	return len(p.ToUninstall) == 0 && len(p.ToInstall) == 0
}

func componentSet(cs []manifest.Component) map[manifest.Component]bool {
	set := make(map[manifest.Component]bool, len(cs))
	for _, c := range cs {
		set[c] = true
	}
	return set
}

func setDifference(a, b map[manifest.Component]bool) []manifest.Component {
	var out []manifest.Component
	for c := range a {
		if !b[c] {
			out = append(out, c)
		}
	}
	manifest.SortComponents(out)
	return out
}

func setToSlice(set map[manifest.Component]bool) []manifest.Component {
	out := make([]manifest.Component, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	manifest.SortComponents(out)
	return out
}

// ComputePlan implements the planning algorithm of spec.md §4.6:
// 1. the installed config's component list is the starting set;
// 2. the final set is the new manifest's required components plus
//    requested extensions plus any currently-installed extension still
//    valid for the new target;
// 3. renames are applied to the starting set before any set operation;
// 4-5. same manifest -> incremental diff; different manifest -> full
//    reinstall, to guarantee consistency across binary ABI changes;
// 7. every component slated for install must be available in the new
//    manifest, or requested-components-unavailable is returned and
//    nothing is planned.
func ComputePlan(oldManifest, newManifest *manifest.Manifest, target string, cfg *prefix.Config, changes Changes) (*Plan, error) {
	rustPkg, err := newManifest.GetRustPkgForTarget(target)
	if err != nil {
		return nil, err
	}

	if err := validatePreconditions(newManifest, rustPkg, cfg, changes, target); err != nil {
		return nil, err
	}

	starting := make([]manifest.Component, len(cfg.Components))
	for i, c := range cfg.Components {
		starting[i] = manifest.Component{Pkg: newManifest.RenameTarget(c.Pkg), Target: c.Target}
	}
	startingSet := componentSet(starting)

	var finalSet map[manifest.Component]bool
	if changes.Profile != "" {
		pkgs, ok := newManifest.Profiles[changes.Profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", changes.Profile)
		}
		finalSet = make(map[manifest.Component]bool, len(pkgs))
		for _, pkgName := range pkgs {
			finalSet[manifest.Component{Pkg: pkgName, Target: target}] = true
		}
	} else {
		finalSet = componentSet(rustPkg.Components)
	}
	for _, c := range changes.AddExtensions {
		finalSet[c] = true
	}
	removeSet := componentSet(changes.RemoveExtensions)
	extensionSet := componentSet(rustPkg.Extensions)
	for c := range startingSet {
		if extensionSet[c] && !removeSet[c] {
			finalSet[c] = true
		}
	}

	var toUninstall, toInstall []manifest.Component
	if oldManifest != nil && oldManifest.Equal(newManifest) {
		toUninstall = setDifference(startingSet, finalSet)
		toInstall = setDifference(finalSet, startingSet)
	} else {
		toUninstall = setToSlice(startingSet)
		toInstall = setToSlice(finalSet)
	}

	if len(toUninstall) == 0 && len(toInstall) == 0 {
		return &Plan{FinalSet: setToSlice(finalSet)}, nil
	}

	var unavailable []string
	for _, c := range toInstall {
		tp, ok := newManifest.Pkg[c.Pkg]
		if !ok {
			unavailable = append(unavailable, c.String())
			continue
		}
		targetedPkg, ok := tp.Target[c.Target]
		if !ok || !targetedPkg.Available {
			unavailable = append(unavailable, c.String())
		}
	}
	if len(unavailable) > 0 {
		return nil, rustuperr.RequestedComponentsUnavailable(unavailable)
	}

	return &Plan{
		ToUninstall: toUninstall,
		ToInstall:   toInstall,
		FinalSet:    setToSlice(finalSet),
	}, nil
}

// validatePreconditions enforces spec.md §4.6's "Pre-condition
// assertions (program errors, not user errors)": every requested
// add-extension must be a real extension of the new target, and every
// requested remove-extension must currently be installed.
func validatePreconditions(newManifest *manifest.Manifest, rustPkg *manifest.TargetedPackage, cfg *prefix.Config, changes Changes, target string) error {
	extensionSet := componentSet(rustPkg.Extensions)
	for _, c := range changes.AddExtensions {
		if !extensionSet[c] {
			return fmt.Errorf("program error: requested extension %s is not an extension of the new manifest's target %q", c, target)
		}
	}
	installedSet := componentSet(cfg.Components)
	for _, c := range changes.RemoveExtensions {
		if !installedSet[c] {
			return fmt.Errorf("program error: requested removal of %s which is not installed", c)
		}
	}
	return nil
}
