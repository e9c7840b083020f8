package flowsetup

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scope decides whether an install is per-user or machine-wide. It selects
// the defaults for the install directory and the shortcut locations.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// ParseScope validates a scope name from a flag. The empty string means
// per-user.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeUser:
		return ScopeUser, nil
	case ScopeSystem:
		return ScopeSystem, nil
	}
	return "", fmt.Errorf("unknown scope %q (want user or system)", s)
}

// BaseVariables returns the install variables for the host machine: the
// locations manifest templates can root themselves at. The app and group
// variables are added once the install directory is settled.
func BaseVariables(scope Scope) (StringMap, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving user config directory: %w", err)
	}
	return StringMap{
		"home":        home,
		"tmp":         os.TempDir(),
		"userappdata": configDir,
		"autopf":      osProgramsDir(scope, home),
		"startmenu":   osStartMenuDir(scope, home),
		"desktop":     filepath.Join(home, "Desktop"),
	}, nil
}

// FileWriteAccess reports whether the current user can create files in path.
func FileWriteAccess(path string) bool { return osFileWriteAccess(path) }

// DiskSpace returns the free bytes available on the volume holding path, or
// -1 when it cannot be determined.
func DiskSpace(path string) int64 { return osDiskSpace(path) }
