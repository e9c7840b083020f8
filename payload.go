package flowsetup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
)

// PackageExt is the conventional file extension for bare packages.
const PackageExt = ".fpk"

// ErrNoPayload reports a file with no package appended. Running a stub
// executable that nothing was packed onto ends up here.
var ErrNoPayload = errors.New("no setup payload attached")

// ErrCorrupt reports a package whose structure or checksums do not hold up.
var ErrCorrupt = errors.New("package corrupted")

// Compression names a package body compression scheme.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

func (c Compression) valid() bool {
	switch c {
	case CompressionNone, CompressionGzip, CompressionZstd:
		return true
	}
	return false
}

func (c Compression) id() uint16 {
	switch c {
	case CompressionGzip:
		return 1
	case CompressionZstd:
		return 2
	default:
		return 0
	}
}

func compressionFromID(id uint16) (Compression, error) {
	switch id {
	case 0:
		return CompressionNone, nil
	case 1:
		return CompressionGzip, nil
	case 2:
		return CompressionZstd, nil
	}
	return "", fmt.Errorf("%w: unknown compression id %d", ErrCorrupt, id)
}

// Index is a package's table of contents. It carries everything the
// installer needs at run time, so a package is self-sufficient once built.
type Index struct {
	App         AppInfo      `json:"app"`
	Tasks       []TaskOption `json:"tasks,omitempty"`
	Dirs        []DirEntry   `json:"dirs,omitempty"`
	Icons       []IconEntry  `json:"icons,omitempty"`
	Run         []RunEntry   `json:"run,omitempty"`
	Files       []IndexEntry `json:"files"`
	License     string       `json:"license,omitempty"`
	IconFile    string       `json:"icon_file,omitempty"`
	TotalSize   int64        `json:"total_size"`
	Compression Compression  `json:"compression"`
	CreatedAt   time.Time    `json:"created_at"`
	Builder     string       `json:"builder"`
}

// IndexEntry describes one file in the package body. Entries appear in the
// index in the same order as in the body.
type IndexEntry struct {
	// Path is the archive member name, a slash-separated relative path
	// derived from the source path.
	Path string `json:"path"`
	// Dest is the target directory template from the manifest.
	Dest         string `json:"dest"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256"`
	Mode         uint32 `json:"mode"`
	OnlyIfAbsent bool   `json:"only_if_absent,omitempty"`
	Keep         bool   `json:"keep,omitempty"`
	Check        string `json:"check,omitempty"`
}

// TargetName returns the file name the entry installs as.
func (e IndexEntry) TargetName() string { return path.Base(e.Path) }

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// PayloadWriter streams the package sections onto a writer: the body first,
// file by file, then the index and footer. It never seeks, so a caller can
// write arbitrary stub bytes to the destination before the first Add.
type PayloadWriter struct {
	dst         io.Writer
	counted     *countingWriter
	comp        io.WriteCloser
	tw          *tar.Writer
	ts          time.Time
	compression Compression
	entries     []IndexEntry
	finished    bool
}

// NewPayloadWriter starts a package body on dst. All archive timestamps are
// set to ts, so identical input produces identical output.
func NewPayloadWriter(dst io.Writer, compression Compression, ts time.Time) (*PayloadWriter, error) {
	if !compression.valid() {
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
	pw := &PayloadWriter{
		dst:         dst,
		counted:     &countingWriter{w: dst},
		ts:          ts.UTC().Truncate(time.Second),
		compression: compression,
	}
	var body io.Writer = pw.counted
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewWriterLevel(pw.counted, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		pw.comp, body = gz, gz
	case CompressionZstd:
		// Single encoder goroutine keeps the output byte-for-byte
		// reproducible across builds.
		enc, err := zstd.NewWriter(pw.counted,
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
			zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		pw.comp, body = enc, enc
	}
	pw.tw = tar.NewWriter(body)
	return pw, nil
}

// Add appends one file to the body and returns the entry completed with the
// streamed content's hash. The entry's Size must be set in advance; a size or
// hash mismatch with the streamed content is an error, so a source file
// changing between inspection and packing cannot slip through.
func (pw *PayloadWriter) Add(entry IndexEntry, content io.Reader) (IndexEntry, error) {
	if pw.finished {
		return entry, fmt.Errorf("payload already finished")
	}
	if entry.Path == "" {
		return entry, fmt.Errorf("entry has no path")
	}
	hdr := &tar.Header{
		Name:    entry.Path,
		Size:    entry.Size,
		Mode:    int64(entry.Mode),
		ModTime: pw.ts,
		Format:  tar.FormatPAX,
	}
	if err := pw.tw.WriteHeader(hdr); err != nil {
		return entry, fmt.Errorf("packing %s: %w", entry.Path, err)
	}
	h := sha256.New()
	n, err := io.Copy(pw.tw, io.TeeReader(content, h))
	if err != nil {
		return entry, fmt.Errorf("packing %s: %w", entry.Path, err)
	}
	if n != entry.Size {
		return entry, fmt.Errorf("packing %s: size changed from %d to %d bytes", entry.Path, entry.Size, n)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if entry.SHA256 != "" && entry.SHA256 != sum {
		return entry, fmt.Errorf("packing %s: content changed while packing", entry.Path)
	}
	entry.SHA256 = sum
	pw.entries = append(pw.entries, entry)
	return entry, nil
}

// Finish closes the body and writes the index and footer. The index's file
// list, sizes and compression are filled in from the writer's own records;
// the caller provides the rest of idx.
func (pw *PayloadWriter) Finish(idx Index) error {
	if pw.finished {
		return fmt.Errorf("payload already finished")
	}
	pw.finished = true
	if err := pw.tw.Close(); err != nil {
		return fmt.Errorf("closing body: %w", err)
	}
	if pw.comp != nil {
		if err := pw.comp.Close(); err != nil {
			return fmt.Errorf("closing body: %w", err)
		}
	}
	idx.Files = pw.entries
	idx.Compression = pw.compression
	idx.CreatedAt = pw.ts
	idx.TotalSize = 0
	for _, e := range pw.entries {
		idx.TotalSize += e.Size
	}
	indexJSON, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if _, err := pw.dst.Write(indexJSON); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	f := footer{
		version:     footerVersion,
		compression: pw.compression.id(),
		indexLen:    uint64(len(indexJSON)),
		bodyLen:     uint64(pw.counted.n),
		indexSum:    sha256.Sum256(indexJSON),
	}
	if _, err := pw.dst.Write(f.encode()); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	return nil
}

// Reader reads a package, either a bare file or the tail of a stub-prefixed
// installer. Opening verifies the index against its footer checksum; file
// contents are verified as they stream out during extraction.
type Reader struct {
	Index Index

	f       *os.File
	bodyOff int64
	bodyLen int64
}

// OpenPackage opens the package at path. A file without the package footer
// returns ErrNoPayload.
func OpenPackage(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// OpenSelf opens the package appended to the running executable.
func OpenSelf() (*Reader, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return OpenPackage(exe)
}

func newReader(f *os.File) (*Reader, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	ftr, bodyOff, indexOff, err := readFooter(f, fi.Size())
	if err != nil {
		return nil, err
	}
	indexJSON := make([]byte, ftr.indexLen)
	if _, err := f.ReadAt(indexJSON, indexOff); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if sha256.Sum256(indexJSON) != ftr.indexSum {
		return nil, fmt.Errorf("%w: index checksum mismatch", ErrCorrupt)
	}
	r := &Reader{f: f, bodyOff: bodyOff, bodyLen: int64(ftr.bodyLen)}
	if err := json.Unmarshal(indexJSON, &r.Index); err != nil {
		return nil, fmt.Errorf("%w: decoding index: %v", ErrCorrupt, err)
	}
	comp, err := compressionFromID(ftr.compression)
	if err != nil {
		return nil, err
	}
	if r.Index.Compression != comp {
		return nil, fmt.Errorf("%w: index and footer disagree on compression", ErrCorrupt)
	}
	return r, nil
}

// Extract walks the body in index order, calling fn with each entry and a
// reader over its content. fn may return without reading; the remainder is
// drained so the entry's checksum can be verified either way. A checksum
// mismatch stops extraction with ErrCorrupt.
func (r *Reader) Extract(fn func(IndexEntry, io.Reader) error) error {
	section := io.NewSectionReader(r.f, r.bodyOff, r.bodyLen)
	var body io.Reader = section
	switch r.Index.Compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(section)
		if err != nil {
			return fmt.Errorf("%w: opening body: %v", ErrCorrupt, err)
		}
		defer gz.Close()
		body = gz
	case CompressionZstd:
		dec, err := zstd.NewReader(section)
		if err != nil {
			return fmt.Errorf("%w: opening body: %v", ErrCorrupt, err)
		}
		defer dec.Close()
		body = dec
	}
	tr := tar.NewReader(body)
	seen := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading body: %v", ErrCorrupt, err)
		}
		if seen >= len(r.Index.Files) {
			return fmt.Errorf("%w: body holds more files than indexed", ErrCorrupt)
		}
		entry := r.Index.Files[seen]
		seen++
		if hdr.Name != entry.Path {
			return fmt.Errorf("%w: body out of order: %s where %s was indexed", ErrCorrupt, hdr.Name, entry.Path)
		}
		h := sha256.New()
		content := io.TeeReader(tr, h)
		if err := fn(entry, content); err != nil {
			return err
		}
		if _, err := io.Copy(io.Discard, content); err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrCorrupt, entry.Path, err)
		}
		if sum := hex.EncodeToString(h.Sum(nil)); sum != entry.SHA256 {
			return fmt.Errorf("%w: %s: content checksum mismatch", ErrCorrupt, entry.Path)
		}
	}
	if seen != len(r.Index.Files) {
		return fmt.Errorf("%w: body holds %d files, index lists %d", ErrCorrupt, seen, len(r.Index.Files))
	}
	return nil
}

// Verify re-reads the whole body, checking every file hash against the
// index without writing anything.
func (r *Reader) Verify() error {
	return r.Extract(func(IndexEntry, io.Reader) error { return nil })
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
