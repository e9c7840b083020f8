// Package builder compiles a setup manifest and its source files into a
// distributable package, optionally prefixed with a stub executable so the
// result is a self-contained installer.
package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/flowly-app/flowsetup"
	"github.com/flowly-app/flowsetup/internal/log"
)

// Options control a single build.
type Options struct {
	// ManifestPath locates the setup manifest. Relative source paths in the
	// manifest resolve against its directory.
	ManifestPath string
	// Output overrides the artifact path derived from the manifest.
	Output string
	// Stub overrides the manifest's stub executable.
	Stub string
	// Timestamp pins all archive timestamps, making builds reproducible.
	// Zero means the current time.
	Timestamp time.Time
}

// Report summarizes a finished build.
type Report struct {
	Artifact    string
	Files       int
	TotalSize   int64 // payload bytes before compression
	PackageSize int64 // artifact bytes on disk
	Compression flowsetup.Compression
	Stubbed     bool
	Elapsed     time.Duration
}

// Build compiles the manifest into its output artifact. The artifact is
// written atomically, so a failed build never leaves a truncated package
// behind.
func Build(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	manifest, err := flowsetup.LoadManifest(opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	baseDir, err := filepath.Abs(filepath.Dir(opts.ManifestPath))
	if err != nil {
		return nil, err
	}

	sources, err := resolveSources(ctx, manifest, baseDir)
	if err != nil {
		return nil, err
	}
	iconFile := ""
	if manifest.App.Icon != "" {
		sources, iconFile, err = appendIcon(sources, manifest.App.Icon, baseDir)
		if err != nil {
			return nil, fmt.Errorf("app icon: %w", err)
		}
	}
	license, err := readAsset(manifest.App.License, baseDir)
	if err != nil {
		return nil, fmt.Errorf("app license: %w", err)
	}

	artifact, stub := outputPaths(manifest, baseDir, opts)
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return nil, err
	}
	perm := os.FileMode(0o644)
	if stub != "" {
		perm = 0o755
	}
	pending, err := renameio.NewPendingFile(artifact, renameio.WithPermissions(perm))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", artifact, err)
	}
	defer pending.Cleanup()

	if stub != "" {
		if err := copyStub(pending, stub); err != nil {
			return nil, err
		}
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	pw, err := flowsetup.NewPayloadWriter(pending, manifest.Output.Compression, ts)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := packSource(pw, src); err != nil {
			return nil, err
		}
		total += src.Size
	}
	err = pw.Finish(flowsetup.Index{
		App:      manifest.App,
		Tasks:    manifest.Tasks,
		Dirs:     manifest.Dirs,
		Icons:    manifest.Icons,
		Run:      manifest.Run,
		License:  license,
		IconFile: iconFile,
		Builder:  "flowsetup/" + flowsetup.Version,
	})
	if err != nil {
		return nil, err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("writing %s: %w", artifact, err)
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Artifact:    artifact,
		Files:       len(sources),
		TotalSize:   total,
		PackageSize: info.Size(),
		Compression: manifest.Output.Compression,
		Stubbed:     stub != "",
		Elapsed:     time.Since(start),
	}
	logger := log.WithComponent("builder")
	logger.Info().
		Str("artifact", report.Artifact).
		Int("files", report.Files).
		Int64("payload_bytes", report.TotalSize).
		Int64("package_bytes", report.PackageSize).
		Str("compression", string(report.Compression)).
		Dur("elapsed", report.Elapsed).
		Msg("package built")
	return report, nil
}

// outputPaths returns the artifact and stub locations with command line
// overrides applied. Relative paths resolve against the manifest directory.
func outputPaths(m *flowsetup.Manifest, baseDir string, opts Options) (artifact, stub string) {
	spec := m.Output
	if opts.Stub != "" {
		spec.Stub = opts.Stub
	}
	stub = spec.Stub
	if stub != "" && !filepath.IsAbs(stub) {
		stub = filepath.Join(baseDir, stub)
	}
	artifact = opts.Output
	if artifact == "" {
		artifact = filepath.Join(spec.Dir, spec.ArtifactName())
	}
	if !filepath.IsAbs(artifact) {
		artifact = filepath.Join(baseDir, artifact)
	}
	return artifact, stub
}

// appendIcon bundles the application icon as one more package entry
// installing into the application directory. An icon already listed under
// files is not packed twice.
func appendIcon(sources []Source, icon, baseDir string) ([]Source, string, error) {
	src, err := resolveSource(flowsetup.FileEntry{Source: icon, Dest: "{{.app}}"}, baseDir)
	if err != nil {
		return nil, "", err
	}
	for _, existing := range sources {
		if existing.Path == src.Path {
			return sources, path.Base(existing.ArchivePath), nil
		}
	}
	for _, existing := range sources {
		if existing.ArchivePath == src.ArchivePath {
			return nil, "", fmt.Errorf("icon %s collides with source %s in the package", src.Path, existing.Path)
		}
	}
	return append(sources, src), path.Base(src.ArchivePath), nil
}

// readAsset loads an optional build-time text asset such as the license file.
func readAsset(source, baseDir string) (string, error) {
	if source == "" {
		return "", nil
	}
	expanded, err := flowsetup.ExpandVariables(source, flowsetup.StringMap{"src": baseDir})
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(baseDir, expanded)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func packSource(pw *flowsetup.PayloadWriter, src Source) error {
	f, err := os.Open(src.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src.Path, err)
	}
	defer f.Close()
	_, err = pw.Add(flowsetup.IndexEntry{
		Path:         src.ArchivePath,
		Dest:         src.Entry.Dest,
		Size:         src.Size,
		SHA256:       src.SHA256,
		Mode:         uint32(src.Mode),
		OnlyIfAbsent: src.Entry.OnlyIfAbsent,
		Keep:         src.Entry.Keep,
		Check:        src.Entry.Check,
	}, f)
	return err
}

func copyStub(dst io.Writer, stub string) error {
	f, err := os.Open(stub)
	if err != nil {
		return fmt.Errorf("stub: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("stub %s: %w", stub, err)
	}
	return nil
}
