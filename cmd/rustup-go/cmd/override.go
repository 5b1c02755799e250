package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Pin a directory to a specific toolchain",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <toolchain>",
	Short: "Pin the current directory to a toolchain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(cwd, "rust-toolchain"), []byte(args[0]+"\n"), 0o644)
	},
}

var overrideUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Remove the directory override, if any",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		path, ov, err := toolchain.FindOverride(cwd)
		if err != nil {
			return err
		}
		if ov == nil {
			return nil
		}
		return os.Remove(path)
	},
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the override applying to the current directory, if any",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		path, ov, err := toolchain.FindOverride(cwd)
		if err != nil {
			return err
		}
		if ov == nil {
			fmt.Println("no override")
			return nil
		}
		fmt.Printf("%s -> %s\n", path, ov.Channel)
		return nil
	},
}

func init() {
	overrideCmd.AddCommand(overrideSetCmd, overrideUnsetCmd, overrideListCmd)
	rootCmd.AddCommand(overrideCmd)
}
