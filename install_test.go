//go:build !windows

package flowsetup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// buildFlowlyPackage writes a real package matching the flowlyIndex fixture
// and returns its path plus the file contents by archive path. Mutators can
// adjust the index, e.g. to add a license, before it is written.
func buildFlowlyPackage(t *testing.T, mutate ...func(*Index)) (string, map[string][]byte) {
	t.Helper()
	contents := map[string][]byte{
		"build/Flowly.exe":           bytes.Repeat([]byte("EXE"), 100),
		"seed/habit_tracker.sqlite3": []byte("seed-db-content!"),
	}
	path := filepath.Join(t.TempDir(), "FlowlySetup"+PackageExt)
	f, err := os.Create(path)
	require.NoError(t, err)
	pw, err := NewPayloadWriter(f, CompressionZstd, testStamp)
	require.NoError(t, err)

	idx := flowlyIndex()
	for _, fn := range mutate {
		fn(idx)
	}
	for _, entry := range idx.Files {
		entry.SHA256 = ""
		entry.Size = int64(len(contents[entry.Path]))
		_, err := pw.Add(entry, bytes.NewReader(contents[entry.Path]))
		require.NoError(t, err)
	}
	require.NoError(t, pw.Finish(*idx))
	require.NoError(t, f.Close())
	return path, contents
}

func openFlowlyPackage(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := OpenPackage(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestInstallerInstall(t *testing.T) {
	home := isolateHome(t)
	path, contents := buildFlowlyPackage(t)
	r := openFlowlyPackage(t, path)
	store := openTestStore(t)

	plan, err := NewPlan(&r.Index, Settings{})
	require.NoError(t, err)

	inst := NewInstaller(r, plan, store)
	var installed int
	inst.SetProgressFunction(func(status InstallStatus) {
		if status.File != nil && status.File.Installed {
			installed++
		}
	})
	inst.StartInstall()
	require.NoError(t, inst.Wait())

	assert.Equal(t, 2, installed)
	assert.InDelta(t, 1.0, inst.Progress(), 0.001)
	assert.Equal(t, plan.InstallSize, inst.Size())
	assert.NotEmpty(t, inst.SizeString())

	status, ok := inst.Status()
	require.True(t, ok)
	assert.True(t, status.Done)

	exe := filepath.Join(home, ".local", "opt", "Flowly", "Flowly.exe")
	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, contents["build/Flowly.exe"], data)
	info, err := os.Stat(exe)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	seed := filepath.Join(home, ".config", "Flowly", "habit_tracker.sqlite3")
	data, err = os.ReadFile(seed)
	require.NoError(t, err)
	assert.Equal(t, contents["seed/habit_tracker.sqlite3"], data)

	receipt, err := inst.PostInstall(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	require.Len(t, receipt.Files, 2)
	assert.True(t, receipt.Files[1].Keep)
	assert.Contains(t, receipt.Dirs, filepath.Join(home, ".config", "Flowly"))
	require.Len(t, receipt.Shortcuts, 1)
	assert.FileExists(t, receipt.Shortcuts[0])

	stored, err := store.Lookup("Flowly")
	require.NoError(t, err)
	assert.Equal(t, receipt.ID, stored.ID)
	assert.Equal(t, "1.2.0", stored.Version)
	assert.Len(t, stored.Files, 2)
}

func TestInstallerPreservesExistingSeed(t *testing.T) {
	home := isolateHome(t)
	path, _ := buildFlowlyPackage(t)
	store := openTestStore(t)

	install := func() *Receipt {
		r := openFlowlyPackage(t, path)
		plan, err := NewPlan(&r.Index, Settings{Silent: true})
		require.NoError(t, err)
		inst := NewInstaller(r, plan, store)
		inst.StartInstall()
		require.NoError(t, inst.Wait())
		receipt, err := inst.PostInstall(nil)
		require.NoError(t, err)
		return receipt
	}

	install()
	seed := filepath.Join(home, ".config", "Flowly", "habit_tracker.sqlite3")
	require.NoError(t, os.WriteFile(seed, []byte("user habits"), 0o644))

	receipt := install()
	data, err := os.ReadFile(seed)
	require.NoError(t, err)
	assert.Equal(t, "user habits", string(data), "existing database must not be replaced")
	assert.Len(t, receipt.Files, 1, "skipped file should not be recorded")
}

func TestInstallerUninstallerCopy(t *testing.T) {
	home := isolateHome(t)
	path, _ := buildFlowlyPackage(t)
	r := openFlowlyPackage(t, path)
	store := openTestStore(t)

	plan, err := NewPlan(&r.Index, Settings{Silent: true, InstallUninstaller: true})
	require.NoError(t, err)
	inst := NewInstaller(r, plan, store)
	inst.StartInstall()
	require.NoError(t, inst.Wait())

	receipt, err := inst.PostInstall(nil)
	require.NoError(t, err)

	target := filepath.Join(home, ".local", "opt", "Flowly", UninstallerName())
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Greater(t, info.Size(), int64(0))

	last := receipt.Files[len(receipt.Files)-1]
	assert.Equal(t, target, last.Path)
	assert.False(t, last.Keep)
}

func TestInstallerLaunch(t *testing.T) {
	isolateHome(t)
	path, _ := buildFlowlyPackage(t)
	r := openFlowlyPackage(t, path)
	store := openTestStore(t)

	plan, err := NewPlan(&r.Index, Settings{Silent: true})
	require.NoError(t, err)
	inst := NewInstaller(r, plan, store)
	inst.StartInstall()
	require.NoError(t, inst.Wait())

	_, err = inst.PostInstall([]PlannedRun{{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo launched > marker"},
	}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(plan.Dir, "marker"))

	receipt, err := inst.PostInstall([]PlannedRun{{Command: "/bin/sh", Args: []string{"-c", "exit 3"}}})
	assert.Error(t, err)
	assert.NotNil(t, receipt, "receipt survives a failed launch")
}

func TestInstallerAbort(t *testing.T) {
	defer goleak.VerifyNone(t)
	isolateHome(t)
	path, _ := buildFlowlyPackage(t)
	r := openFlowlyPackage(t, path)

	plan, err := NewPlan(&r.Index, Settings{})
	require.NoError(t, err)
	inst := NewInstaller(r, plan, nil)
	inst.Abort()
	inst.Abort() // idempotent
	inst.StartInstall()
	assert.ErrorIs(t, inst.Wait(), ErrAborted)

	status, ok := inst.Status()
	require.True(t, ok)
	assert.True(t, status.Aborted)

	_, err = inst.PostInstall(nil)
	assert.Error(t, err)
}

func TestMkdirAllRecorded(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b", "c")

	created, err := mkdirAllRecorded(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(base, "a"),
		filepath.Join(base, "a", "b"),
		dir,
	}, created)

	created, err = mkdirAllRecorded(dir)
	require.NoError(t, err)
	assert.Empty(t, created)

	file := filepath.Join(base, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = mkdirAllRecorded(file)
	assert.ErrorContains(t, err, "not a directory")
}
