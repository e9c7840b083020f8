// Command flowsetup builds setup packages from manifests and installs,
// inspects and removes them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup"
	"github.com/flowly-app/flowsetup/internal/log"
)

var (
	flagLogLevel   string
	flagLogFile    string
	flagReceiptsDB string
)

var rootCmd = &cobra.Command{
	Use:   "flowsetup",
	Short: "Build and install setup packages",
	Long: `flowsetup compiles a setup manifest and the files it lists into a single
package, and installs such packages on end user machines.

A package carries everything the installer needs at run time: the
application files, the install metadata, the license text and the optional
tasks. Prefixed with a stub executable it becomes a self-contained
installer; as a bare ` + flowsetup.PackageExt + ` file it is installed with this tool.

Examples:
  flowsetup build
  flowsetup inspect dist/flowly-1.2.0-setup.fpk
  flowsetup install dist/flowly-1.2.0-setup.fpk
  flowsetup list
  flowsetup uninstall Flowly`,
	Version:       flowsetup.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Configure(log.Config{Level: flagLogLevel, File: flagLogFile})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "append JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&flagReceiptsDB, "receipts-db", "", "receipts database path (default: per-user config directory)")

	rootCmd.SuggestionsMinimumDistance = 2
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openReceipts opens the receipts database named by --receipts-db, or the
// per-user default.
func openReceipts() (*flowsetup.ReceiptStore, error) {
	path := flagReceiptsDB
	if path == "" {
		var err error
		if path, err = flowsetup.DefaultReceiptsPath(); err != nil {
			return nil, err
		}
	}
	return flowsetup.OpenReceipts(path)
}
