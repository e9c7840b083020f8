package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/flowly-app/flowsetup"
)

// ErrSourceMissing reports a manifest source that does not exist on disk.
var ErrSourceMissing = errors.New("source file missing")

// Source is one manifest file entry pinned to a file on disk: located,
// sized and hashed, ready for packing.
type Source struct {
	Entry flowsetup.FileEntry
	// Path is the absolute location on disk.
	Path string
	// ArchivePath is the slash path the file is stored under in the package.
	ArchivePath string
	Size        int64
	SHA256      string
	Mode        os.FileMode
}

// resolveSources pins every manifest source. Hashing the sources is the slow
// part of a build, so entries are processed a few at a time; the result keeps
// manifest order.
func resolveSources(ctx context.Context, m *flowsetup.Manifest, baseDir string) ([]Source, error) {
	sources := make([]Source, len(m.Files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, entry := range m.Files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := resolveSource(entry, baseDir)
			if err != nil {
				return err
			}
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The installer addresses files by their package path, so two sources
	// cannot share one.
	seen := make(map[string]string, len(sources))
	for _, src := range sources {
		if prev, ok := seen[src.ArchivePath]; ok {
			return nil, fmt.Errorf("sources %s and %s both pack as %s", prev, src.Path, src.ArchivePath)
		}
		seen[src.ArchivePath] = src.Path
	}
	return sources, nil
}

func resolveSource(entry flowsetup.FileEntry, baseDir string) (Source, error) {
	expanded, err := flowsetup.ExpandVariables(entry.Source, flowsetup.StringMap{"src": baseDir})
	if err != nil {
		return Source{}, err
	}
	p := expanded
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Source{}, fmt.Errorf("%w: %s", ErrSourceMissing, p)
	case err != nil:
		return Source{}, err
	case info.IsDir():
		return Source{}, fmt.Errorf("source %s is a directory", p)
	}
	if entry.Verify == "sqlite" {
		if err := verifySQLiteFile(p); err != nil {
			return Source{}, err
		}
	}
	sum, err := hashFile(p)
	if err != nil {
		return Source{}, err
	}
	return Source{
		Entry:       entry,
		Path:        p,
		ArchivePath: archivePath(baseDir, p),
		Size:        info.Size(),
		SHA256:      sum,
		Mode:        entry.FileMode(info.Mode()),
	}, nil
}

// archivePath picks the name a source is stored under in the package: its
// slash path relative to the manifest when it lives inside the manifest's
// tree, otherwise just the file name.
func archivePath(baseDir, p string) string {
	rel, err := filepath.Rel(baseDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
