//go:build !windows

package flowsetup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const desktopFileTemplate = `[Desktop Entry]
Name={{.name}}
Type=Application
Exec={{.exec}}
Path={{.path}}
Terminal=false
`

// osCreateShortcut writes a freedesktop.org desktop entry. Menu directories
// are flat on unix, so everything lands directly in s.Dir.
func osCreateShortcut(s Shortcut) (string, error) {
	content, err := ExpandVariables(desktopFileTemplate, StringMap{
		"name": s.Name,
		"exec": s.Target,
		"path": s.WorkingDir,
	})
	if err != nil {
		return "", err
	}
	if s.Icon != "" {
		content += "Icon=" + s.Icon + "\n"
	}
	if s.Comment != "" {
		content += "Comment=" + s.Comment + "\n"
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, desktopFileName(s.Name))
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return "", fmt.Errorf("writing desktop entry: %w", err)
	}
	return path, nil
}

func desktopFileName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-")) + ".desktop"
}
