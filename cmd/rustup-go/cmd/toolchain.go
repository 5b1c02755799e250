package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/manifestation"
	"github.com/rustup-go/rustup-go/pkg/rlog"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Manage installed toolchains",
}

var toolchainInstallProfile string

var toolchainInstallCmd = &cobra.Command{
	Use:   "install <toolchain>",
	Short: "Install or update a toolchain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return installOrUpdate(cmd.Context(), args[0], manifestation.Changes{Profile: toolchainInstallProfile})
	},
}

var toolchainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed toolchains",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(rcfg.ToolchainsDir())
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		settings, err := rcfg.LoadSettings()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			marker := ""
			if e.Name() == settings.DefaultToolchain {
				marker = " (default)"
			}
			fmt.Println(e.Name() + marker)
		}
		return nil
	},
}

var toolchainRemoveCmd = &cobra.Command{
	Use:   "remove <toolchain>",
	Short: "Uninstall a toolchain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := filepath.Join(rcfg.ToolchainsDir(), args[0])
		if err := os.RemoveAll(root); err != nil {
			return err
		}
		rlog.Infof("removed toolchain '%s'", args[0])
		return nil
	},
}

var toolchainDefaultCmd = &cobra.Command{
	Use:   "default <toolchain>",
	Short: "Set (or show) the default toolchain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := rcfg.LoadSettings()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(settings.DefaultToolchain)
			return nil
		}
		settings.DefaultToolchain = args[0]
		return rcfg.SaveSettings(settings)
	},
}

func init() {
	toolchainInstallCmd.Flags().StringVar(&toolchainInstallProfile, "profile", "", "profile (minimal/default/complete) to install instead of the channel's default set")
	toolchainCmd.AddCommand(toolchainInstallCmd, toolchainListCmd, toolchainRemoveCmd, toolchainDefaultCmd)
	rootCmd.AddCommand(toolchainCmd)
}
