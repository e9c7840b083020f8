package flowsetup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type (
	// UninstallOptions control what Uninstall removes.
	UninstallOptions struct {
		// Purge also removes files the manifest flagged keep, such as user
		// databases seeded at install time.
		Purge bool
		// DryRun reports what would happen without touching the disk or the
		// receipt store.
		DryRun bool
	}

	// UninstallReport lists every path an uninstallation removed, kept or
	// found already gone.
	UninstallReport struct {
		App     string
		Version string
		Removed []string
		Kept    []string
		Missing []string
	}
)

// Uninstall removes an installed app using its receipt: shortcuts first,
// then files, then the directories the installer created, deepest first and
// only once nothing foreign is left inside. Files flagged keep survive
// unless Purge is set; files already gone are tolerated. The receipt itself
// is dropped at the end.
func Uninstall(store *ReceiptStore, app string, opts UninstallOptions) (*UninstallReport, error) {
	receipt, err := store.Lookup(app)
	if err != nil {
		return nil, err
	}
	report := &UninstallReport{App: receipt.App, Version: receipt.Version}
	removed := make(map[string]bool)
	self, _ := os.Executable()

	remove := func(path string) error {
		removed[path] = true
		if opts.DryRun {
			report.Removed = append(report.Removed, path)
			return nil
		}
		switch err := os.Remove(path); {
		case err == nil:
			report.Removed = append(report.Removed, path)
		case os.IsNotExist(err):
			report.Missing = append(report.Missing, path)
		case filepath.Clean(path) == filepath.Clean(self):
			// A running uninstaller cannot always delete itself. Unmark it so
			// its directory counts as occupied and survives too.
			delete(removed, path)
			report.Kept = append(report.Kept, path)
		default:
			return err
		}
		return nil
	}

	for _, shortcut := range receipt.Shortcuts {
		if !fileExists(shortcut) {
			report.Missing = append(report.Missing, shortcut)
			continue
		}
		if err := remove(shortcut); err != nil {
			return report, fmt.Errorf("removing shortcut %s: %w", shortcut, err)
		}
	}

	for _, file := range receipt.Files {
		if file.Keep && !opts.Purge {
			report.Kept = append(report.Kept, file.Path)
			continue
		}
		if !fileExists(file.Path) {
			report.Missing = append(report.Missing, file.Path)
			continue
		}
		if err := remove(file.Path); err != nil {
			return report, fmt.Errorf("removing %s: %w", file.Path, err)
		}
	}

	// Children sort longer than their parents, so length order empties a
	// tree bottom up.
	dirs := append([]string(nil), receipt.Dirs...)
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				report.Missing = append(report.Missing, dir)
			}
			continue
		}
		blocked := false
		for _, entry := range entries {
			if !removed[filepath.Join(dir, entry.Name())] {
				blocked = true
				break
			}
		}
		if blocked {
			report.Kept = append(report.Kept, dir)
			continue
		}
		if err := remove(dir); err != nil {
			return report, fmt.Errorf("removing directory %s: %w", dir, err)
		}
	}

	if !opts.DryRun {
		if err := store.Remove(receipt.App); err != nil {
			return report, err
		}
	}
	return report, nil
}
