package prefix

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
	"github.com/rustup-go/rustup-go/pkg/transaction"
)

func relTo(root, absPath string) (string, error) {
	return filepath.Rel(root, absPath)
}

// Config is the installed-component list persisted per-prefix (spec.md §3
// "Config"). It is the authoritative set for planning; the per-component
// manifest.in files are authoritative for on-disk file ownership.
type Config struct {
	Components []manifest.Component `toml:"components"`
}

type wireConfig struct {
	Components []wireConfigComponent `toml:"components"`
}

type wireConfigComponent struct {
	Pkg    string `toml:"pkg"`
	Target string `toml:"target"`
}

// LoadConfig reads multirust-config.toml, returning an empty Config if the
// prefix has never had anything installed.
func (p *Prefix) LoadConfig() (*Config, error) {
	path := p.ConfigPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotRead, path, err)
	}
	var wire wireConfig
	if err := toml.Unmarshal(data, &wire); err != nil {
		return nil, rustuperr.ManifestParseError(0, err.Error())
	}
	cfg := &Config{}
	for _, c := range wire.Components {
		cfg.Components = append(cfg.Components, manifest.Component{Pkg: c.Pkg, Target: c.Target})
	}
	return cfg, nil
}

// SaveConfig writes the component list through tx, so it participates in
// the same commit/rollback as the component install/uninstall operations
// that produced it (spec.md §4.6: "C3 commits, atomically writing the new
// manifest and config to the prefix").
func (p *Prefix) SaveConfig(tx *transaction.Transaction, cfg *Config) error {
	comps := append([]manifest.Component(nil), cfg.Components...)
	manifest.SortComponents(comps)
	wire := wireConfig{}
	for _, c := range comps {
		wire.Components = append(wire.Components, wireConfigComponent{Pkg: c.Pkg, Target: c.Target})
	}
	out, err := toml.Marshal(wire)
	if err != nil {
		return err
	}
	return writeThroughTransaction(tx, p.Root, p.ConfigPath(), out)
}

// SaveChannelManifest writes the last successfully installed v2 manifest
// verbatim through tx.
func (p *Prefix) SaveChannelManifest(tx *transaction.Transaction, text string) error {
	return writeThroughTransaction(tx, p.Root, p.ChannelManifestPath(), []byte(text))
}

// LoadChannelManifest reads back the verbatim manifest text saved by
// SaveChannelManifest, or ("", nil) if none has ever been written.
func (p *Prefix) LoadChannelManifest() (string, error) {
	data, err := os.ReadFile(p.ChannelManifestPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", rustuperr.WrapOSError(rustuperr.KindCannotRead, p.ChannelManifestPath(), err)
	}
	return string(data), nil
}

func writeThroughTransaction(tx *transaction.Transaction, root, absPath string, data []byte) error {
	relpath, err := relTo(root, absPath)
	if err != nil {
		return err
	}
	var w interface {
		Write([]byte) (int, error)
		Close() error
	}
	if _, statErr := os.Stat(absPath); statErr == nil {
		w, err = tx.ModifyFile(relpath)
	} else {
		w, err = tx.AddFile(relpath)
	}
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(data)
	return err
}
