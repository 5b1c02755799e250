// Package cmd implements the rustup-go command-line interface: the
// toolchain/target/component/override management surface described by
// spec.md §5, built on spf13/cobra the way the teacher's own CLI is.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/rlog"
)

var (
	verboseFlag bool
	rcfg        *rconfig.Context
)

var rootCmd = &cobra.Command{
	Use:   "rustup-go",
	Short: "rustup-go installs and manages toolchains for a compiled-language distribution.",
	Long: `rustup-go is a command-line tool that installs, updates, and switches
between toolchains fetched from a distribution server, and proxies
invocations of the tools inside them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logOpts := rlog.DefaultOptions()
		if verboseFlag {
			logOpts.ConsoleLevel = rlog.DebugLevel
		}
		rlog.Init(logOpts)

		loaded, err := rconfig.Load()
		if err != nil {
			return fmt.Errorf("failed to resolve RUSTUP_HOME: %w", err)
		}
		rcfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once from main() when argv[0] is not a proxied tool name.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}
