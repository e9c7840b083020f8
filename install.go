package flowsetup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
)

// ErrAborted reports an installation stopped through Abort. Files already
// placed stay in place; there is no rollback.
var ErrAborted = errors.New("installation aborted")

type (
	// InstallStatus is the message passed to the progress function and the
	// status channel while the installer works. All fields are optional and
	// carry the file being worked on, or whether the installer as a whole
	// finished, failed or was aborted.
	InstallStatus struct {
		File    *PlannedFile
		Done    bool
		Aborted bool
		Err     error
	}

	// Installer copies one plan's files out of a package onto the disk. It
	// reports progress through a callback and a status channel, and records
	// everything it creates so PostInstall can store the receipt used for
	// later uninstallation.
	Installer struct {
		plan   *Plan
		reader *Reader
		store  *ReceiptStore
		files  map[string]*PlannedFile

		statusChannel    chan InstallStatus
		abortChannel     chan struct{}
		abortOnce        sync.Once
		done             chan struct{}
		actionLock       sync.Mutex
		progressFunction func(InstallStatus)

		mu            sync.Mutex
		installedSize int64
		finished      bool
		err           error
		receipt       *Receipt
	}
)

// NewInstaller creates an installer for a plan. The reader must stay open
// until the installer is done; the store keeps the receipt and may be nil
// only when PostInstall is never called.
func NewInstaller(reader *Reader, plan *Plan, store *ReceiptStore) *Installer {
	files := make(map[string]*PlannedFile, len(plan.Files))
	for _, f := range plan.Files {
		files[f.Path] = f
	}
	return &Installer{
		plan:             plan,
		reader:           reader,
		store:            store,
		files:            files,
		statusChannel:    make(chan InstallStatus, 1),
		abortChannel:     make(chan struct{}),
		done:             make(chan struct{}),
		progressFunction: func(InstallStatus) {},
		receipt: &Receipt{
			App:       plan.App.Name,
			Version:   plan.App.Version,
			Publisher: plan.App.Publisher,
			Dir:       plan.Dir,
			Scope:     plan.Scope,
		},
	}
}

// SetProgressFunction registers a callback invoked before and after each
// file. It runs on the installer's goroutine and must not block.
func (i *Installer) SetProgressFunction(function func(InstallStatus)) {
	i.progressFunction = function
}

// StartInstall runs the installer in a separate goroutine and returns
// immediately. Use Wait for completion and PostInstall to finalize.
func (i *Installer) StartInstall() { go i.install() }

func (i *Installer) install() {
	defer close(i.done)
	i.actionLock.Lock()
	defer i.actionLock.Unlock()

	err := i.createDirs()
	if err == nil {
		err = i.reader.Extract(i.installFile)
	}
	i.mu.Lock()
	i.finished, i.err = true, err
	i.mu.Unlock()
	switch {
	case errors.Is(err, ErrAborted):
		i.emit(InstallStatus{Aborted: true, Err: err})
	case err != nil:
		i.emit(InstallStatus{Err: err})
	default:
		i.emit(InstallStatus{Done: true})
	}
}

// createDirs makes the install directory, the manifest's directory entries
// and every file target's parent, recording what it actually created.
func (i *Installer) createDirs() error {
	dirs := append([]string{i.plan.Dir}, i.plan.Dirs...)
	for _, f := range i.plan.Files {
		if !f.Skip {
			dirs = append(dirs, filepath.Dir(f.Target))
		}
	}
	for _, dir := range dirs {
		created, err := mkdirAllRecorded(dir)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		i.receipt.Dirs = append(i.receipt.Dirs, created...)
	}
	return nil
}

// installFile handles one package entry during extraction.
func (i *Installer) installFile(entry IndexEntry, content io.Reader) error {
	select {
	case <-i.abortChannel:
		return ErrAborted
	default:
	}
	file := i.files[entry.Path]
	if file == nil {
		return fmt.Errorf("package entry %s missing from plan", entry.Path)
	}
	// The plan's answer can go stale between prompt and write.
	if !file.Skip && file.OnlyIfAbsent && fileExists(file.Target) {
		file.Skip, file.SkipReason = true, "exists"
	}
	i.emit(InstallStatus{File: file})
	if file.Skip {
		return nil
	}
	if err := i.writeFile(file, content); err != nil {
		return err
	}
	i.mu.Lock()
	i.installedSize += file.Size
	i.mu.Unlock()
	i.receipt.Files = append(i.receipt.Files, ReceiptFile{
		Path:   file.Target,
		SHA256: file.SHA256,
		Size:   file.Size,
		Keep:   file.Keep,
	})
	file.Installed = true
	i.emit(InstallStatus{File: file})
	return nil
}

// writeFile streams one entry to its target, atomically: the content lands
// in a temp file that only replaces the target after the checksum holds.
func (i *Installer) writeFile(file *PlannedFile, content io.Reader) error {
	pending, err := renameio.NewPendingFile(file.Target, renameio.WithPermissions(file.FileMode.Perm()))
	if err != nil {
		return fmt.Errorf("preparing %s: %w", file.Target, err)
	}
	defer pending.Cleanup()
	h := sha256.New()
	if _, err := io.Copy(pending, io.TeeReader(content, h)); err != nil {
		return fmt.Errorf("writing %s: %w", file.Target, err)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != file.SHA256 {
		return fmt.Errorf("%w: %s: content checksum mismatch", ErrCorrupt, file.Path)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", file.Target, err)
	}
	return nil
}

// Abort stops the installer after the file currently being written. Files
// already placed stay in place.
func (i *Installer) Abort() {
	i.abortOnce.Do(func() { close(i.abortChannel) })
}

// Wait blocks until the install goroutine finishes and returns its error,
// ErrAborted included. It does not run the post-install phase.
func (i *Installer) Wait() error {
	<-i.done
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// PostInstall finishes a successful installation: it writes the shortcuts,
// drops the uninstaller copy, stores the receipt and runs the given
// commands. The caller picks the commands through Plan.RunDecisions. The
// receipt is returned even when one of the commands fails afterwards.
func (i *Installer) PostInstall(launches []PlannedRun) (*Receipt, error) {
	i.actionLock.Lock()
	defer i.actionLock.Unlock()
	i.mu.Lock()
	finished, err := i.finished, i.err
	i.mu.Unlock()
	if !finished {
		return nil, fmt.Errorf("installer still running")
	}
	if err != nil {
		return nil, fmt.Errorf("install failed, nothing to finalize: %w", err)
	}
	if i.store == nil {
		return nil, fmt.Errorf("no receipt store")
	}

	for _, icon := range i.plan.Icons {
		created, err := mkdirAllRecorded(icon.Shortcut.Dir)
		if err != nil {
			return nil, fmt.Errorf("shortcut directory %s: %w", icon.Shortcut.Dir, err)
		}
		i.receipt.Dirs = append(i.receipt.Dirs, created...)
		path, err := CreateShortcut(icon.Shortcut)
		if err != nil {
			return nil, fmt.Errorf("shortcut %s: %w", icon.Shortcut.Name, err)
		}
		i.receipt.Shortcuts = append(i.receipt.Shortcuts, path)
	}

	if i.plan.InstallUninstaller {
		uninstaller, err := i.placeUninstaller()
		if err != nil {
			return nil, err
		}
		i.receipt.Files = append(i.receipt.Files, uninstaller)
	}

	if err := i.store.Record(i.receipt); err != nil {
		return nil, fmt.Errorf("recording receipt: %w", err)
	}

	for _, run := range launches {
		if err := i.launch(run); err != nil {
			return i.receipt, err
		}
	}
	return i.receipt, nil
}

func (i *Installer) launch(run PlannedRun) error {
	cmd := exec.Command(run.Command, run.Args...)
	cmd.Dir = i.plan.Dir
	if run.NoWait {
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("starting %s: %w", run.Command, err)
		}
		return cmd.Process.Release()
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s: %w (output: %s)", run.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// placeUninstaller copies the running setup executable into the install
// directory so the app can be removed without the original installer.
func (i *Installer) placeUninstaller() (ReceiptFile, error) {
	exe, err := os.Executable()
	if err != nil {
		return ReceiptFile{}, fmt.Errorf("locating executable: %w", err)
	}
	src, err := os.Open(exe)
	if err != nil {
		return ReceiptFile{}, err
	}
	defer src.Close()
	target := filepath.Join(i.plan.Dir, UninstallerName())
	pending, err := renameio.NewPendingFile(target, renameio.WithPermissions(0o755))
	if err != nil {
		return ReceiptFile{}, err
	}
	defer pending.Cleanup()
	h := sha256.New()
	n, err := io.Copy(pending, io.TeeReader(src, h))
	if err != nil {
		return ReceiptFile{}, fmt.Errorf("copying uninstaller: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return ReceiptFile{}, err
	}
	return ReceiptFile{Path: target, SHA256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// UninstallerName is the file name the uninstaller copy installs as. A setup
// executable started under this name switches to uninstall mode.
func UninstallerName() string { return "uninstall" + osExeSuffix() }

// emit hands a status to the progress function and parks it on the status
// channel, replacing an unread older message rather than blocking.
func (i *Installer) emit(status InstallStatus) {
	i.progressFunction(status)
	select {
	case i.statusChannel <- status:
	default:
		select {
		case <-i.statusChannel:
		default:
		}
		select {
		case i.statusChannel <- status:
		default:
		}
	}
}

// Status returns the most recent unread status message, if any.
func (i *Installer) Status() (InstallStatus, bool) {
	select {
	case status := <-i.statusChannel:
		return status, true
	default:
		return InstallStatus{}, false
	}
}

// Progress returns the size ratio between already written and planned
// bytes, between 0.0 and 1.0 inclusive.
func (i *Installer) Progress() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.plan.InstallSize == 0 {
		if i.finished {
			return 1
		}
		return 0
	}
	return float64(i.installedSize) / float64(i.plan.InstallSize)
}

// Size returns the bytes that have been written so far, or the plan's total
// once the installer finished successfully.
func (i *Installer) Size() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished && i.err == nil {
		return i.plan.InstallSize
	}
	return i.installedSize
}

// SizeString returns a human-readable version of Size.
func (i *Installer) SizeString() string {
	return humanize.IBytes(uint64(i.Size()))
}

// mkdirAllRecorded creates dir and any missing parents, returning the paths
// it actually created, shallowest first.
func mkdirAllRecorded(dir string) ([]string, error) {
	var missing []string
	probe := dir
	for {
		if info, err := os.Stat(probe); err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("%s exists and is not a directory", probe)
			}
			break
		}
		missing = append([]string{probe}, missing...)
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	for _, d := range missing {
		if err := os.Mkdir(d, 0o755); err != nil && !os.IsExist(err) {
			return nil, err
		}
	}
	return missing, nil
}
