//go:build !windows

package flowsetup

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

func osFileWriteAccess(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func osDiskSpace(path string) int64 {
	fs := unix.Statfs_t{}
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}
	return int64(fs.Bavail) * int64(fs.Bsize)
}

func osProgramsDir(scope Scope, home string) string {
	if scope == ScopeSystem {
		return "/opt"
	}
	return filepath.Join(home, ".local", "opt")
}

func osStartMenuDir(scope Scope, home string) string {
	if scope == ScopeSystem {
		return "/usr/share/applications"
	}
	return filepath.Join(home, ".local", "share", "applications")
}

// Application menus on unix are flat, so a start menu group collapses to the
// applications directory itself.
func osGroupDir(startMenu, group string) string { return startMenu }

func osExeSuffix() string { return "" }
