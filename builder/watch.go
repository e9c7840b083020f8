package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flowly-app/flowsetup"
	"github.com/flowly-app/flowsetup/internal/log"
)

// Rapid editor saves collapse into one rebuild.
const debounceDelay = 300 * time.Millisecond

// Watch builds once, then rebuilds whenever the manifest or one of its
// sources changes. Every successful build is passed to onBuild. Rebuild
// failures are logged and watching continues, so a half-saved manifest does
// not end the session. Watch returns when ctx is cancelled; only the initial
// build failing is fatal.
func Watch(ctx context.Context, opts Options, onBuild func(*Report)) error {
	logger := log.WithComponent("watch")

	report, err := Build(ctx, opts)
	if err != nil {
		return err
	}
	if onBuild != nil {
		onBuild(report)
	}

	files, dirs, err := watchTargets(opts)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()
	// Watching directories rather than the files themselves survives editors
	// that replace a file by renaming a temporary over it.
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	logger.Info().
		Str("manifest", opts.ManifestPath).
		Int("files", len(files)).
		Msg("watching for changes")

	var (
		debounce *time.Timer
		rebuild  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if !files[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("source changed")
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
			} else {
				debounce.Stop()
				debounce.Reset(debounceDelay)
			}
			rebuild = debounce.C

		case <-rebuild:
			rebuild = nil
			report, err := Build(ctx, opts)
			if err != nil {
				logger.Error().Err(err).Msg("rebuild failed")
				continue
			}
			if onBuild != nil {
				onBuild(report)
			}
			// An edited manifest may reference new sources.
			if newFiles, newDirs, err := watchTargets(opts); err == nil {
				files = newFiles
				for _, dir := range newDirs {
					_ = watcher.Add(dir)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			logger.Error().Err(err).Msg("watch error")
		}
	}
}

// watchTargets returns the files a rebuild depends on and the directories
// containing them. The set covers the manifest itself, every file source,
// and the icon and license assets.
func watchTargets(opts Options) (map[string]bool, []string, error) {
	manifest, err := flowsetup.LoadManifest(opts.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	baseDir, err := filepath.Abs(filepath.Dir(opts.ManifestPath))
	if err != nil {
		return nil, nil, err
	}
	manifestPath, err := filepath.Abs(opts.ManifestPath)
	if err != nil {
		return nil, nil, err
	}

	files := map[string]bool{filepath.Clean(manifestPath): true}
	add := func(source string) error {
		expanded, err := flowsetup.ExpandVariables(source, flowsetup.StringMap{"src": baseDir})
		if err != nil {
			return err
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(baseDir, expanded)
		}
		files[filepath.Clean(expanded)] = true
		return nil
	}
	for _, entry := range manifest.Files {
		if err := add(entry.Source); err != nil {
			return nil, nil, err
		}
	}
	if manifest.App.Icon != "" {
		if err := add(manifest.App.Icon); err != nil {
			return nil, nil, err
		}
	}
	if manifest.App.License != "" {
		if err := add(manifest.App.License); err != nil {
			return nil, nil, err
		}
	}

	dirSet := make(map[string]bool)
	for f := range files {
		dirSet[filepath.Dir(f)] = true
	}
	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return files, dirs, nil
}
