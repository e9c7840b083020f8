// Command flowsetup-stub is the self-extracting installer front end. The
// builder appends a setup package to this executable; running the result
// installs the packaged application. A copy dropped into the install
// directory under the uninstaller name removes it again.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowly-app/flowsetup"
	"github.com/flowly-app/flowsetup/internal/log"
)

const logFilename = "installer.log"

func main() { os.Exit(run()) }

// run parses the command line and starts one of the installer modes.
//
// Without flags the interactive wizard asks for the install directory, the
// license and the optional tasks. -silent with -accept-license installs
// unattended. -uninstall (or running as the placed uninstaller binary)
// removes the recorded installation instead.
func run() int {
	translator := flowsetup.NewTranslator()

	target := flag.String("target", "", translator.Get("cli_help_target"))
	silent := flag.Bool("silent", false, translator.Get("cli_help_silent"))
	showLicense := flag.Bool("license", false, translator.Get("cli_help_showlicense"))
	acceptLicense := flag.Bool("accept-license", false, translator.Get("cli_help_acceptlicense"))
	noLaunch := flag.Bool("no-launch", false, translator.Get("cli_help_nolaunch"))
	tasks := flag.String("tasks", "", translator.Get("cli_help_tasks"))
	uninstall := flag.Bool("uninstall", false, translator.Get("cli_help_uninstall"))
	purge := flag.Bool("purge", false, translator.Get("cli_help_purge"))
	yes := flag.Bool("yes", false, translator.Get("cli_help_yes"))
	lang := flag.String("lang", "", translator.Get("cli_help_lang")+" "+strings.Join(translator.GetLanguages(), ", "))
	flag.Parse()

	log.Configure(log.Config{File: logFilename, Service: "flowsetup-stub"})
	if *lang != "" {
		if err := translator.SetLanguage(*lang); err != nil {
			fmt.Printf("language %q not available\n", *lang)
		}
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *uninstall || strings.HasPrefix(filepath.Base(exe), "uninstall") {
		return runUninstall(filepath.Dir(exe), *lang, *purge, *yes)
	}

	reader, err := flowsetup.OpenSelf()
	if errors.Is(err, flowsetup.ErrNoPayload) {
		fmt.Println(translator.Get("err_no_payload"))
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer reader.Close()

	if *showLicense {
		if reader.Index.License == "" {
			fmt.Println(translator.Get("license_none"))
		} else {
			fmt.Println(reader.Index.License)
		}
		return 2
	}

	store, err := openReceipts()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	settings := flowsetup.Settings{
		TargetDir:          *target,
		Silent:             *silent,
		NoLaunch:           *noLaunch,
		AcceptLicense:      *acceptLicense,
		Language:           *lang,
		InstallUninstaller: true,
	}
	if *tasks != "" {
		settings.Tasks = strings.Split(*tasks, ",")
	}

	wizard := flowsetup.NewWizard(reader, store, settings, os.Stdin, os.Stdout)
	if _, err := wizard.Run(); err != nil {
		if errors.Is(err, flowsetup.ErrAborted) || errors.Is(err, flowsetup.ErrLicenseDeclined) {
			return 3
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// runUninstall removes the installation recorded for the directory this
// binary sits in.
func runUninstall(dir, lang string, purge, yes bool) int {
	store, err := openReceipts()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	receipt, err := store.LookupByDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	_, err = flowsetup.UninstallPrompt{
		Store:     store,
		Receipt:   receipt,
		Options:   flowsetup.UninstallOptions{Purge: purge},
		AssumeYes: yes,
		Language:  lang,
		In:        os.Stdin,
		Out:       os.Stdout,
	}.Run()
	if errors.Is(err, flowsetup.ErrUninstallDeclined) {
		return 3
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func openReceipts() (*flowsetup.ReceiptStore, error) {
	path, err := flowsetup.DefaultReceiptsPath()
	if err != nil {
		return nil, err
	}
	return flowsetup.OpenReceipts(path)
}
