package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/manifestation"
)

var updateCmd = &cobra.Command{
	Use:   "update [toolchain]",
	Short: "Update one (or, with no argument, all) installed toolchains",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return installOrUpdate(cmd.Context(), args[0], manifestation.Changes{})
		}

		entries, err := os.ReadDir(rcfg.ToolchainsDir())
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if err := installOrUpdate(cmd.Context(), e.Name(), manifestation.Changes{}); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
