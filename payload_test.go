package flowsetup

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStamp = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// writeTestPackage builds a two-file package at path, optionally prefixed
// with stub bytes, and returns the file contents by archive path.
func writeTestPackage(t *testing.T, path string, comp Compression, stub []byte) map[string][]byte {
	t.Helper()
	contents := map[string][]byte{
		"bin/demo":      bytes.Repeat([]byte("flow"), 4096),
		"seed/notes.db": []byte("seed database"),
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	if len(stub) > 0 {
		_, err = f.Write(stub)
		require.NoError(t, err)
	}
	pw, err := NewPayloadWriter(f, comp, testStamp)
	require.NoError(t, err)
	for _, name := range []string{"bin/demo", "seed/notes.db"} {
		entry := IndexEntry{Path: name, Dest: "{{.app}}", Size: int64(len(contents[name])), Mode: 0o644}
		_, err = pw.Add(entry, bytes.NewReader(contents[name]))
		require.NoError(t, err)
	}
	require.NoError(t, pw.Finish(Index{App: AppInfo{Name: "Demo", Version: "1.0"}, Builder: "test"}))
	require.NoError(t, f.Close())
	return contents
}

func TestPackageRoundtrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(comp), func(t *testing.T) {
			pkgPath := filepath.Join(t.TempDir(), "demo"+PackageExt)
			contents := writeTestPackage(t, pkgPath, comp, nil)

			r, err := OpenPackage(pkgPath)
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, "Demo", r.Index.App.Name)
			assert.Equal(t, comp, r.Index.Compression)
			assert.True(t, r.Index.CreatedAt.Equal(testStamp))
			require.Len(t, r.Index.Files, 2)
			assert.Equal(t, int64(len(contents["bin/demo"])+len(contents["seed/notes.db"])), r.Index.TotalSize)

			got := map[string][]byte{}
			err = r.Extract(func(e IndexEntry, rd io.Reader) error {
				data, err := io.ReadAll(rd)
				if err != nil {
					return err
				}
				got[e.Path] = data
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, contents, got)
		})
	}
}

func TestPackageStubPrefix(t *testing.T) {
	pkgPath := filepath.Join(t.TempDir(), "demo-setup")
	stub := bytes.Repeat([]byte{0x7f, 'E', 'L', 'F'}, 512)
	writeTestPackage(t, pkgPath, CompressionZstd, stub)

	r, err := OpenPackage(pkgPath)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	require.NoError(t, r.Extract(func(e IndexEntry, rd io.Reader) error {
		// Skip reading; Extract drains and checksums the entry anyway.
		names = append(names, e.Path)
		return nil
	}))
	assert.Equal(t, []string{"bin/demo", "seed/notes.db"}, names)
}

func TestOpenPackageNoPayload(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "plain.bin")
	require.NoError(t, os.WriteFile(plain, bytes.Repeat([]byte("x"), 200), 0o644))
	_, err := OpenPackage(plain)
	assert.ErrorIs(t, err, ErrNoPayload)

	short := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(short, []byte("tiny"), 0o644))
	_, err = OpenPackage(short)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestOpenPackageCorruptIndex(t *testing.T) {
	pkgPath := filepath.Join(t.TempDir(), "demo"+PackageExt)
	writeTestPackage(t, pkgPath, CompressionGzip, nil)

	raw, err := os.ReadFile(pkgPath)
	require.NoError(t, err)
	// Flip a byte inside the index JSON, which sits right before the footer.
	raw[len(raw)-footerSize-2] ^= 0xff
	require.NoError(t, os.WriteFile(pkgPath, raw, 0o644))

	_, err = OpenPackage(pkgPath)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExtractDetectsTamperedBody(t *testing.T) {
	pkgPath := filepath.Join(t.TempDir(), "demo"+PackageExt)
	writeTestPackage(t, pkgPath, CompressionNone, nil)

	raw, err := os.ReadFile(pkgPath)
	require.NoError(t, err)
	// With no compression the body is a plain tar, so the first member's
	// content starts after its 512-byte header block.
	raw[600] ^= 0x01
	require.NoError(t, os.WriteFile(pkgPath, raw, 0o644))

	r, err := OpenPackage(pkgPath)
	require.NoError(t, err)
	defer r.Close()
	err = r.Extract(func(e IndexEntry, rd io.Reader) error {
		_, err := io.Copy(io.Discard, rd)
		return err
	})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestPayloadWriterRejectsChangedSource(t *testing.T) {
	pw, err := NewPayloadWriter(io.Discard, CompressionNone, testStamp)
	require.NoError(t, err)

	// Fewer bytes than announced.
	_, err = pw.Add(IndexEntry{Path: "a", Size: 10}, bytes.NewReader([]byte("12345")))
	assert.ErrorContains(t, err, "size changed")

	pw, err = NewPayloadWriter(io.Discard, CompressionNone, testStamp)
	require.NoError(t, err)

	// Right size, wrong content hash.
	_, err = pw.Add(IndexEntry{
		Path:   "a",
		Size:   5,
		SHA256: "0000000000000000000000000000000000000000000000000000000000000000",
	}, bytes.NewReader([]byte("12345")))
	assert.ErrorContains(t, err, "content changed")
}

func TestIndexEntryTargetName(t *testing.T) {
	assert.Equal(t, "Flowly.exe", IndexEntry{Path: "build/Flowly.exe"}.TargetName())
	assert.Equal(t, "demo", IndexEntry{Path: "demo"}.TargetName())
}
