package manifestation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustup-go/rustup-go/pkg/archive"
	"github.com/rustup-go/rustup-go/pkg/diskio"
	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/prefix"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// Downloader is the subset of *dist.Client Execute needs; satisfied
// directly by dist.Client without this package importing dist's HTTP
// machinery into its own API surface.
type Downloader interface {
	DownloadToFile(ctx context.Context, url, destPath, expectedHashHex string) error
}

// Notifier receives human-readable progress and warning messages during
// Execute (component uninstall skip-on-missing, download progress, ...).
type Notifier func(message string)

// Execute applies a Plan computed by ComputePlan against pfx: downloads
// and checksums every install archive, then performs all uninstalls and
// installs inside a single Transaction, writing the new channel manifest
// and config before committing (spec.md §4.6 "Execution").
func Execute(ctx context.Context, pfx *prefix.Prefix, newManifest *manifest.Manifest, manifestText string, plan *Plan, dl Downloader, scratchDir string, notify Notifier) error {
	if plan.IsEmpty() {
		return nil
	}
	if notify == nil {
		notify = func(string) {}
	}

	downloaded, err := downloadInstalls(ctx, newManifest, plan.ToInstall, dl, scratchDir, notify)
	if err != nil {
		return err
	}
	defer func() {
		for _, path := range downloaded {
			os.Remove(path)
		}
	}()

	tx, err := pfx.NewTransaction()
	if err != nil {
		return err
	}
	defer tx.Done()

	executor := diskio.New(diskio.DefaultWorkerCount(), diskio.DefaultByteBudget())
	defer executor.Close()

	for _, c := range plan.ToUninstall {
		ci, err := pfx.Find(c.String())
		if err != nil {
			return err
		}
		if ci == nil {
			notify(fmt.Sprintf("component %s was already absent, skipping uninstall", c))
			continue
		}
		if err := ci.Uninstall(tx, func(msg string) { notify(msg) }); err != nil {
			return err
		}
	}

	for _, c := range plan.ToInstall {
		localPath := downloaded[c]
		pkg, err := archive.Open(localPath)
		if err != nil {
			return err
		}
		if err := pkg.Install(pfx, c.String(), c.Pkg, tx, executor); err != nil {
			return err
		}
	}

	if err := pfx.SaveChannelManifest(tx, manifestText); err != nil {
		return err
	}
	if err := pfx.SaveConfig(tx, &prefix.Config{Components: plan.FinalSet}); err != nil {
		return err
	}

	return tx.Commit()
}

func downloadInstalls(ctx context.Context, newManifest *manifest.Manifest, toInstall []manifest.Component, dl Downloader, scratchDir string, notify Notifier) (map[manifest.Component]string, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, scratchDir, err)
	}
	paths := make(map[manifest.Component]string, len(toInstall))
	for _, c := range toInstall {
		pkg, ok := newManifest.Pkg[c.Pkg]
		if !ok {
			return nil, rustuperr.New(rustuperr.KindMissingPackage, fmt.Sprintf("package %q not in manifest", c.Pkg))
		}
		tp, ok := pkg.Target[c.Target]
		if !ok {
			return nil, rustuperr.New(rustuperr.KindMissingPackage, fmt.Sprintf("no target %q offering for package %q", c.Target, c.Pkg))
		}
		format, url, hash := tp.BestArchive()
		dest := filepath.Join(scratchDir, fmt.Sprintf("%s.tar.%s", c.String(), format))
		notify(fmt.Sprintf("downloading %s", url))
		if err := dl.DownloadToFile(ctx, url, dest, hash); err != nil {
			return nil, err
		}
		paths[c] = dest
	}
	return paths, nil
}
