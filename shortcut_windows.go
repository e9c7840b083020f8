//go:build windows

package flowsetup

import (
	"fmt"
	"os"
	"path/filepath"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// osCreateShortcut writes a .lnk file through the WScript.Shell COM object,
// which owns the shell link binary format.
func osCreateShortcut(s Shortcut) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, s.Name+".lnk")

	if err := ole.CoInitialize(0); err != nil {
		// Code 1 is S_FALSE: COM was already initialized on this thread,
		// which still needs the matching CoUninitialize below.
		oleErr, ok := err.(*ole.OleError)
		if !ok || oleErr.Code() != 1 {
			return "", fmt.Errorf("initializing COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	shell, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return "", fmt.Errorf("creating WScript.Shell: %w", err)
	}
	defer shell.Release()

	dispatch, err := shell.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return "", err
	}
	defer dispatch.Release()

	result, err := oleutil.CallMethod(dispatch, "CreateShortcut", path)
	if err != nil {
		return "", fmt.Errorf("creating shortcut: %w", err)
	}
	link := result.ToIDispatch()
	defer link.Release()

	if _, err := oleutil.PutProperty(link, "TargetPath", s.Target); err != nil {
		return "", err
	}
	if s.WorkingDir != "" {
		if _, err := oleutil.PutProperty(link, "WorkingDirectory", s.WorkingDir); err != nil {
			return "", err
		}
	}
	if s.Icon != "" {
		if _, err := oleutil.PutProperty(link, "IconLocation", s.Icon+",0"); err != nil {
			return "", err
		}
	}
	if s.Comment != "" {
		if _, err := oleutil.PutProperty(link, "Description", s.Comment); err != nil {
			return "", err
		}
	}
	if _, err := oleutil.CallMethod(link, "Save"); err != nil {
		return "", fmt.Errorf("saving shortcut: %w", err)
	}
	return path, nil
}
