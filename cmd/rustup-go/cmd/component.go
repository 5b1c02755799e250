package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/manifestation"
	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

var componentToolchainFlag string

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Add or remove components of a toolchain",
}

var componentAddCmd = &cobra.Command{
	Use:   "add <component>",
	Short: "Install a component (e.g. rust-src, clippy)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveActiveToolchain(componentToolchainFlag)
		if err != nil {
			return err
		}
		comp := parseComponentArg(args[0])
		return installOrUpdate(cmd.Context(), name, manifestation.Changes{AddExtensions: []manifest.Component{comp}})
	},
}

var componentRemoveCmd = &cobra.Command{
	Use:   "remove <component>",
	Short: "Remove a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveActiveToolchain(componentToolchainFlag)
		if err != nil {
			return err
		}
		comp := parseComponentArg(args[0])
		return installOrUpdate(cmd.Context(), name, manifestation.Changes{RemoveExtensions: []manifest.Component{comp}})
	},
}

var componentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed components",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveActiveToolchain(componentToolchainFlag)
		if err != nil {
			return err
		}
		pfx, installed, err := toolchain.Prefix(rcfg.Home, name)
		if err != nil {
			return err
		}
		if !installed {
			return fmt.Errorf("toolchain '%s' is not installed", name)
		}
		instances, err := pfx.List()
		if err != nil {
			return err
		}
		for _, ci := range instances {
			fmt.Println(ci.LongName)
		}
		return nil
	},
}

// parseComponentArg resolves a bare component name (e.g. "clippy") against
// the active host/override target; a name already carrying a target
// suffix (e.g. "rust-std-wasm32-unknown-unknown") is split at the known
// triple boundary instead.
func parseComponentArg(arg string) manifest.Component {
	for _, knownTarget := range knownExtensionTargets {
		if suffix := "-" + knownTarget; strings.HasSuffix(arg, suffix) {
			return manifest.Component{Pkg: strings.TrimSuffix(arg, suffix), Target: knownTarget}
		}
	}
	return manifest.Component{Pkg: arg, Target: hostOrOverrideTarget()}
}

func resolveActiveToolchain(explicit string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	settings, err := rcfg.LoadSettings()
	if err != nil {
		return "", err
	}
	res, err := toolchain.Resolve(explicit, cwd, settings)
	if err != nil {
		return "", err
	}
	return res.Name, nil
}

func init() {
	componentCmd.PersistentFlags().StringVarP(&componentToolchainFlag, "toolchain", "t", "", "toolchain to operate on (default: resolved active toolchain)")
	componentCmd.AddCommand(componentAddCmd, componentRemoveCmd, componentListCmd)
	rootCmd.AddCommand(componentCmd)
}
