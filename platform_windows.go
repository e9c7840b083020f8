//go:build windows

package flowsetup

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

func osFileWriteAccess(path string) bool {
	probe, err := windows.UTF16PtrFromString(filepath.Join(path, ".flowsetup-probe"))
	if err != nil {
		return false
	}
	handle, err := windows.CreateFile(
		probe,
		windows.GENERIC_WRITE|windows.GENERIC_READ,
		0,
		nil,
		windows.CREATE_NEW,
		windows.FILE_ATTRIBUTE_HIDDEN|windows.FILE_FLAG_DELETE_ON_CLOSE,
		0,
	)
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	return true
}

func osDiskSpace(path string) int64 {
	dir, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return -1
	}
	var free uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &free, nil, nil); err != nil {
		return -1
	}
	return int64(free)
}

func osProgramsDir(scope Scope, home string) string {
	if scope == ScopeSystem {
		if pf := os.Getenv("ProgramFiles"); pf != "" {
			return pf
		}
		return `C:\Program Files`
	}
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, "Programs")
	}
	return filepath.Join(home, "AppData", "Local", "Programs")
}

func osStartMenuDir(scope Scope, home string) string {
	if scope == ScopeSystem {
		if pd := os.Getenv("ProgramData"); pd != "" {
			return filepath.Join(pd, "Microsoft", "Windows", "Start Menu", "Programs")
		}
		return `C:\ProgramData\Microsoft\Windows\Start Menu\Programs`
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs")
	}
	return filepath.Join(home, "AppData", "Roaming", "Microsoft", "Windows", "Start Menu", "Programs")
}

func osGroupDir(startMenu, group string) string {
	return filepath.Join(startMenu, group)
}

func osExeSuffix() string { return ".exe" }
