package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/manifest"
	"github.com/rustup-go/rustup-go/pkg/manifestation"
	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

// knownExtensionTargets lists the target triples this CLI recognizes when
// splitting a "<pkg>-<target>" component argument; it is not exhaustive,
// only enough to disambiguate the common cross-compilation targets from a
// package name.
var knownExtensionTargets = []string{
	"x86_64-unknown-linux-gnu",
	"x86_64-unknown-linux-musl",
	"x86_64-apple-darwin",
	"aarch64-apple-darwin",
	"aarch64-unknown-linux-gnu",
	"wasm32-unknown-unknown",
	"x86_64-pc-windows-msvc",
	"x86_64-pc-windows-gnu",
}

var targetToolchainFlag string

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Add or remove cross-compilation targets",
}

var targetAddCmd = &cobra.Command{
	Use:   "add <target>",
	Short: "Install the standard library for an additional target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveActiveToolchain(targetToolchainFlag)
		if err != nil {
			return err
		}
		comp := manifest.Component{Pkg: "rust-std", Target: args[0]}
		return installOrUpdate(cmd.Context(), name, manifestation.Changes{AddExtensions: []manifest.Component{comp}})
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <target>",
	Short: "Remove a previously added target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveActiveToolchain(targetToolchainFlag)
		if err != nil {
			return err
		}
		comp := manifest.Component{Pkg: "rust-std", Target: args[0]}
		return installOrUpdate(cmd.Context(), name, manifestation.Changes{RemoveExtensions: []manifest.Component{comp}})
	},
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List targets installed for a toolchain",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveActiveToolchain(targetToolchainFlag)
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
			if strings.HasPrefix(ci.LongName, "rust-std-") {
				fmt.Println(strings.TrimPrefix(ci.LongName, "rust-std-"))
			}
		}
		return nil
	},
}

func init() {
	targetCmd.PersistentFlags().StringVarP(&targetToolchainFlag, "toolchain", "t", "", "toolchain to operate on (default: resolved active toolchain)")
	targetCmd.AddCommand(targetAddCmd, targetRemoveCmd, targetListCmd)
	rootCmd.AddCommand(targetCmd)
}
