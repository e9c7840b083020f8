package flowsetup

import "os"

// Shortcut describes one launcher entry: a desktop entry file on unix
// systems, a .lnk file on Windows.
type Shortcut struct {
	// Dir is the directory receiving the shortcut file.
	Dir string
	// Name is the display name, which also derives the file name.
	Name string
	// Target is the file the shortcut opens.
	Target string
	// WorkingDir is the directory the target starts in.
	WorkingDir string
	// Icon is an optional icon file path.
	Icon    string
	Comment string
}

// CreateShortcut writes the launcher entry, creating its directory if
// needed, and returns the path of the file it wrote.
func CreateShortcut(s Shortcut) (string, error) {
	return osCreateShortcut(s)
}

// RemoveShortcut deletes a previously created launcher entry. A shortcut
// that is already gone is not an error.
func RemoveShortcut(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
