package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active toolchain and why it was selected",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		settings, err := rcfg.LoadSettings()
		if err != nil {
			return err
		}
		res, err := toolchain.Resolve("", cwd, settings)
		if err != nil {
			fmt.Println("no active toolchain:", err)
			return nil
		}
		fmt.Printf("active toolchain: %s\n", res.Name)
		fmt.Printf("source: %s\n", res.Source)
		if res.OverridePath != "" {
			fmt.Printf("override file: %s\n", res.OverridePath)
		}
		_, installed, err := toolchain.Prefix(rcfg.Home, res.Name)
		if err != nil {
			return err
		}
		fmt.Printf("installed: %t\n", installed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
