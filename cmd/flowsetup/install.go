package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup"
)

var (
	installFlagSilent        bool
	installFlagTarget        string
	installFlagScope         string
	installFlagTasks         []string
	installFlagNoLaunch      bool
	installFlagAcceptLicense bool
	installFlagLang          string
)

var installCmd = &cobra.Command{
	Use:   "install <package>",
	Short: "Install a setup package on this machine",
	Long: `Install runs the setup wizard for a package.

With --silent no questions are asked: the package's defaults apply, plus
whatever --target, --tasks and --accept-license override. A package that
bundles a license refuses to install silently unless --accept-license is
given.

Examples:
  flowsetup install dist/flowly-1.2.0-setup.fpk
  flowsetup install --silent --accept-license dist/flowly-1.2.0-setup.fpk
  flowsetup install --silent --tasks desktopicon --target ~/apps/flowly dist/flowly-1.2.0-setup.fpk`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installFlagSilent, "silent", false, "install with defaults, asking nothing")
	installCmd.Flags().StringVar(&installFlagTarget, "target", "", "install directory (overrides the package default)")
	installCmd.Flags().StringVar(&installFlagScope, "scope", "", "install scope: user or system (default user)")
	installCmd.Flags().StringSliceVar(&installFlagTasks, "tasks", nil, "enable exactly these optional tasks")
	installCmd.Flags().BoolVar(&installFlagNoLaunch, "no-launch", false, "skip post-install launch entries")
	installCmd.Flags().BoolVar(&installFlagAcceptLicense, "accept-license", false, "accept the bundled license")
	installCmd.Flags().StringVar(&installFlagLang, "lang", "", "wizard language (default: system locale)")

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	reader, err := flowsetup.OpenPackage(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	store, err := openReceipts()
	if err != nil {
		return err
	}
	defer store.Close()

	scope, err := flowsetup.ParseScope(installFlagScope)
	if err != nil {
		return err
	}
	wizard := flowsetup.NewWizard(reader, store, flowsetup.Settings{
		TargetDir:     installFlagTarget,
		Scope:         scope,
		Silent:        installFlagSilent,
		Tasks:         installFlagTasks,
		NoLaunch:      installFlagNoLaunch,
		AcceptLicense: installFlagAcceptLicense,
		Language:      installFlagLang,
	}, os.Stdin, os.Stdout)
	_, err = wizard.Run()
	return err
}
