package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup"
)

var (
	uninstallFlagPurge  bool
	uninstallFlagYes    bool
	uninstallFlagDryRun bool
	uninstallFlagLang   string
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <app>",
	Short: "Remove an installed application",
	Long: `Uninstall removes an application installed from a setup package: its
files, its shortcuts and the directories the installer created. Files the
package marked as user data stay behind unless --purge is given. Files
that appeared in the install directory after installation are never
touched, and directories holding them stay.

Examples:
  flowsetup uninstall Flowly
  flowsetup uninstall --purge --yes Flowly
  flowsetup uninstall --dry-run Flowly`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallFlagPurge, "purge", false, "also remove files marked as user data")
	uninstallCmd.Flags().BoolVar(&uninstallFlagYes, "yes", false, "skip the confirmation prompt")
	uninstallCmd.Flags().BoolVar(&uninstallFlagDryRun, "dry-run", false, "show what would be removed without removing")
	uninstallCmd.Flags().StringVar(&uninstallFlagLang, "lang", "", "prompt language (default: system locale)")

	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	store, err := openReceipts()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := flowsetup.UninstallOptions{Purge: uninstallFlagPurge, DryRun: uninstallFlagDryRun}
	if uninstallFlagDryRun {
		report, err := flowsetup.Uninstall(store, args[0], opts)
		if err != nil {
			return describeUnknownApp(store, args[0], err)
		}
		for _, path := range report.Removed {
			fmt.Println("would remove:", path)
		}
		for _, path := range report.Kept {
			fmt.Println("would keep:  ", path)
		}
		return nil
	}

	receipt, err := store.Lookup(args[0])
	if err != nil {
		return describeUnknownApp(store, args[0], err)
	}
	_, err = flowsetup.UninstallPrompt{
		Store:     store,
		Receipt:   receipt,
		Options:   opts,
		AssumeYes: uninstallFlagYes,
		Language:  uninstallFlagLang,
		In:        os.Stdin,
		Out:       os.Stdout,
	}.Run()
	return err
}

// describeUnknownApp extends a not-installed error with the apps the
// receipts database does know about.
func describeUnknownApp(store *flowsetup.ReceiptStore, app string, err error) error {
	if !errors.Is(err, flowsetup.ErrNotInstalled) {
		return err
	}
	receipts, listErr := store.List()
	if listErr != nil || len(receipts) == 0 {
		return fmt.Errorf("%s: %w", app, err)
	}
	names := make([]string, len(receipts))
	for i, r := range receipts {
		names[i] = r.App
	}
	return fmt.Errorf("%s: %w (installed: %s)", app, err, strings.Join(names, ", "))
}
