package cmd

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rustup-go/rustup-go/internal/target"
	"github.com/rustup-go/rustup-go/pkg/dist"
	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/manifestation"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rlog"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

var datedChannelPattern = regexp.MustCompile(`^(nightly|beta)-(\d{4}-\d{2}-\d{2})$`)

// splitChannelDate separates a toolchain name like "nightly-2024-01-02"
// into its channel and date components, the way the dist resolver's
// ManifestURL expects them (spec.md §4.7).
func splitChannelDate(name string) (channel, date string) {
	if m := datedChannelPattern.FindStringSubmatch(name); m != nil {
		return m[1], m[2]
	}
	return name, ""
}

func newDistClient() *dist.Client {
	c := dist.NewClient(2 * time.Minute)
	c.ShowProgress = true
	return c
}

// fetchChannelManifest downloads (or short-circuits on an unchanged hash)
// the named toolchain's channel manifest.
func fetchChannelManifest(ctx context.Context, client *dist.Client, name string) (text string, changed bool, err error) {
	channel, date := splitChannelDate(name)
	url := dist.ManifestURL(rcfg.DistServer, channel, date)
	text, outcome, err := client.FetchManifestWithShortCircuit(ctx, url, rcfg.UpdateHashesDir(), name)
	if err != nil {
		return "", false, err
	}
	return text, outcome.Changed, nil
}

// loadInstalledManifest returns the channel manifest already persisted in
// a toolchain's prefix, or nil if the toolchain has never been installed.
func loadInstalledManifest(pfx *prefix.Prefix, installed bool) (*manifest.Manifest, error) {
	if !installed {
		return nil, nil
	}
	text, err := pfx.LoadChannelManifest()
	if err != nil || text == "" {
		return nil, nil
	}
	return manifest.Parse(text)
}

// fetchV1Fallback builds a synthetic v2-shaped manifest from the legacy
// plain-text channel listing, used when the v2 channel manifest itself does
// not exist on the dist server (spec.md §4.6 "v1 compatibility fallback",
// scenario S5). The v1 format has no component granularity, so this drives
// a single combined "rust" install rather than the usual per-component plan.
func fetchV1Fallback(ctx context.Context, client *dist.Client, name, targetTriple string) (text string, err error) {
	channel, _ := splitChannelDate(name)
	listingText, err := client.FetchText(ctx, dist.V1ManifestURL(rcfg.DistServer, channel))
	if err != nil {
		return "", err
	}
	filename, err := manifest.ParseV1(listingText).FindForTarget(targetTriple)
	if err != nil {
		return "", err
	}
	archiveURL := fmt.Sprintf("%s/%s", rcfg.DistServer, filename)

	hash := ""
	if sidecar, serr := client.FetchText(ctx, dist.Sha256URL(archiveURL)); serr == nil {
		if h, perr := dist.ParseSha256Sidecar(sidecar); perr == nil {
			hash = h
		}
	}

	synth := manifest.SynthesizeCombined(channel, archiveURL, targetTriple, hash)
	return synth.Stringify()
}

func notify(msg string) {
	fmt.Println(msg)
}

func withScratchDir(fn func(dir string) error) error {
	dir, err := os.MkdirTemp("", "rustup-go-scratch-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

func hostOrOverrideTarget() string {
	cwd, err := os.Getwd()
	if err != nil {
		return target.HostTriple()
	}
	_, ov, err := toolchain.FindOverride(cwd)
	if err != nil {
		return target.HostTriple()
	}
	return toolchain.EffectiveTarget(ov)
}

// installOrUpdate applies a plan to bring a toolchain's prefix in line
// with the given manifest and change set, logging progress via rlog.
func installOrUpdate(ctx context.Context, name string, changes manifestation.Changes) error {
	client := newDistClient()

	pfx, installed, err := toolchain.Prefix(rcfg.Home, name)
	if err != nil {
		return err
	}

	targetTriple := hostOrOverrideTarget()

	text, changed, err := fetchChannelManifest(ctx, client, name)
	if err != nil {
		if !rustuperr.IsKind(err, rustuperr.KindDownloadNotExists) {
			return err
		}
		rlog.Infof("no v2 channel manifest for '%s', falling back to the v1 listing", name)
		text, err = fetchV1Fallback(ctx, client, name, targetTriple)
		if err != nil {
			return err
		}
	} else if !changed {
		// The update-hash short circuit skipped the manifest body; plan
		// against the copy already persisted in the prefix.
		text, err = pfx.LoadChannelManifest()
		if err != nil {
			return err
		}
	}
	newManifest, err := manifest.Parse(text)
	if err != nil {
		return err
	}

	oldManifest, err := loadInstalledManifest(pfx, installed)
	if err != nil {
		return err
	}

	cfg, err := pfx.LoadConfig()
	if err != nil {
		return err
	}

	// A prefix with files on disk but no persisted component list predates
	// this tool's config.toml (e.g. it was only ever driven through the v1
	// fallback above, or seeded by an external installer). Treat that as
	// "needs a full v1->v2 reinstall": seed cfg from what is actually
	// installed and force ComputePlan down its full-reinstall path by
	// discarding any stale channel manifest.
	if installed && len(cfg.Components) == 0 {
		instances, err := pfx.List()
		if err != nil {
			return err
		}
		if len(instances) > 0 {
			rlog.Infof("toolchain '%s' has installed components but no v2 config; forcing a full reinstall", name)
			components := make([]manifest.Component, len(instances))
			for i, ci := range instances {
				components[i] = parseComponentArg(ci.LongName)
			}
			cfg = &prefix.Config{Components: components}
			oldManifest = nil
		}
	}

	plan, err := manifestation.ComputePlan(oldManifest, newManifest, targetTriple, cfg, changes)
	if err != nil {
		return err
	}
	if plan.IsEmpty() {
		rlog.Infof("toolchain '%s' is already up to date", name)
		return nil
	}

	return withScratchDir(func(scratch string) error {
		return manifestation.Execute(ctx, pfx, newManifest, text, plan, client, scratch, notify)
	})
}
