//go:build !windows

package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchRebuildOnSourceChange(t *testing.T) {
	dir := flowlyTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan *Report, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, Options{ManifestPath: filepath.Join(dir, "setup.yml")}, func(r *Report) {
			reports <- r
		})
	}()

	select {
	case r := <-reports:
		assert.Equal(t, 3, r.Files)
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the initial build")
	}

	// The first write can race the watcher starting up, so keep touching the
	// source until a rebuild lands. Retries must stay further apart than the
	// debounce window or each one pushes the rebuild out again.
	exe := filepath.Join(dir, "build", "Flowly.exe")
	deadline := time.After(10 * time.Second)
	var rebuilt *Report
poll:
	for {
		require.NoError(t, os.WriteFile(exe, []byte("flowly-binary-v2"), 0o644))
		select {
		case rebuilt = <-reports:
			break poll
		case err := <-done:
			t.Fatalf("watch exited early: %v", err)
		case <-deadline:
			t.Fatal("timed out waiting for a rebuild")
		case <-time.After(4 * debounceDelay):
		}
	}
	payload := int64(len("flowly-binary-v2") + len("seed-db-content!") + len("png-bytes"))
	assert.Equal(t, payload, rebuilt.TotalSize)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestWatchInitialBuildFailure(t *testing.T) {
	dir := flowlyTree(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "LICENSE.txt")))

	err := Watch(context.Background(), Options{ManifestPath: filepath.Join(dir, "setup.yml")}, nil)
	require.Error(t, err)
}

func TestWatchTargets(t *testing.T) {
	dir := flowlyTree(t)

	files, dirs, err := watchTargets(Options{ManifestPath: filepath.Join(dir, "setup.yml")})
	require.NoError(t, err)

	for _, want := range []string{
		filepath.Join(dir, "setup.yml"),
		filepath.Join(dir, "build", "Flowly.exe"),
		filepath.Join(dir, "seed", "habit_tracker.sqlite3"),
		filepath.Join(dir, "assets", "flowly.png"),
		filepath.Join(dir, "LICENSE.txt"),
	} {
		assert.True(t, files[want], "missing %s", want)
	}
	assert.Contains(t, dirs, dir)
	assert.Contains(t, dirs, filepath.Join(dir, "build"))
	assert.NotContains(t, dirs, filepath.Join(dir, "dist"))
}
