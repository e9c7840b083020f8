package flowsetup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// A package file is laid out as
//
//	[stub executable]  optional, any length
//	[body]             one tar stream inside one compression stream
//	[index]            JSON, describes the app and the body contents
//	[footer]           fixed 64 bytes at the very end of the file
//
// The footer sits last so a package can be appended to any stub executable
// without patching offsets into the stub. Readers find it by seeking to the
// end of the file.
const (
	footerSize    = 64
	footerVersion = 1
)

// packageMagic closes every package file.
var packageMagic = [8]byte{'F', 'S', 'E', 'T', 'U', 'P', 0x00, 0x01}

type footer struct {
	version     uint16
	compression uint16
	indexLen    uint64
	bodyLen     uint64
	indexSum    [32]byte
}

func (f footer) encode() []byte {
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint16(buf[0:2], f.version)
	binary.LittleEndian.PutUint16(buf[2:4], f.compression)
	// buf[4:8] reserved
	binary.LittleEndian.PutUint64(buf[8:16], f.indexLen)
	binary.LittleEndian.PutUint64(buf[16:24], f.bodyLen)
	copy(buf[24:56], f.indexSum[:])
	copy(buf[56:64], packageMagic[:])
	return buf
}

func parseFooter(buf []byte) (footer, error) {
	var f footer
	if len(buf) != footerSize {
		return f, fmt.Errorf("footer: need %d bytes, got %d", footerSize, len(buf))
	}
	if !bytes.Equal(buf[56:64], packageMagic[:]) {
		return f, ErrNoPayload
	}
	f.version = binary.LittleEndian.Uint16(buf[0:2])
	if f.version != footerVersion {
		return f, fmt.Errorf("%w: unsupported package version %d", ErrCorrupt, f.version)
	}
	f.compression = binary.LittleEndian.Uint16(buf[2:4])
	f.indexLen = binary.LittleEndian.Uint64(buf[8:16])
	f.bodyLen = binary.LittleEndian.Uint64(buf[16:24])
	copy(f.indexSum[:], buf[24:56])
	return f, nil
}

// readFooter locates the footer at the end of r and returns it along with the
// offsets of the body and index sections.
func readFooter(r io.ReaderAt, size int64) (f footer, bodyOff, indexOff int64, err error) {
	if size < footerSize {
		return f, 0, 0, ErrNoPayload
	}
	buf := make([]byte, footerSize)
	if _, err = r.ReadAt(buf, size-footerSize); err != nil {
		return f, 0, 0, fmt.Errorf("reading footer: %w", err)
	}
	if f, err = parseFooter(buf); err != nil {
		return f, 0, 0, err
	}
	indexOff = size - footerSize - int64(f.indexLen)
	bodyOff = indexOff - int64(f.bodyLen)
	if bodyOff < 0 {
		return f, 0, 0, fmt.Errorf("%w: section lengths exceed file size", ErrCorrupt)
	}
	return f, bodyOff, indexOff, nil
}
