package mpak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// DecodeFileInfo decodes one directory record. b must hold at least
// RecordSize bytes; anything past RecordSize is ignored.
//
// Layout:
//
//	[0, 256)   NUL-terminated name
//	[256, 284) timestamp, unknown, memory offset, decompressed size,
//	           file offset, compressed size, compressed crc32 (uint32 LE each)
func DecodeFileInfo(b []byte) (FileInfo, error) {
	if len(b) < RecordSize {
		return FileInfo{}, decodeErrorf("file info", "record is %d bytes, need %d", len(b), RecordSize)
	}

	end := bytes.IndexByte(b[:NameFieldSize], 0)
	if end < 0 {
		return FileInfo{}, decodeErrorf("file info", "missing name terminator in first %d bytes", NameFieldSize)
	}
	if !utf8.Valid(b[:end]) {
		return FileInfo{}, decodeErrorf("file info", "name %q is not valid UTF-8", b[:end])
	}

	fi := FileInfo{Name: string(b[:end])}

	// positional fields, the order matters
	fields := [recordFieldCount]*uint32{
		&fi.Timestamp,
		&fi.Unknown,
		&fi.MemoryOffset,
		&fi.DecompressedSize,
		&fi.FileOffset,
		&fi.CompressedSize,
		&fi.CompressedCRC32,
	}
	for i, dst := range fields {
		v, err := Uint32LE(b, NameFieldSize+i*4)
		if err != nil {
			return FileInfo{}, &DecodeError{Op: "file info", Reason: fmt.Sprintf("field %d", i), Err: err}
		}
		*dst = v
	}

	return fi, nil
}

// MarshalBinary encodes fi as a RecordSize-byte directory record. Bytes
// between the name terminator and the numeric fields are zero.
func (fi FileInfo) MarshalBinary() ([]byte, error) {
	if len(fi.Name) >= NameFieldSize {
		return nil, fmt.Errorf("name %q is %d bytes, max %d", fi.Name, len(fi.Name), NameFieldSize-1)
	}
	if bytes.IndexByte([]byte(fi.Name), 0) >= 0 {
		return nil, fmt.Errorf("name %q contains a NUL byte", fi.Name)
	}

	b := make([]byte, RecordSize)
	copy(b, fi.Name)

	values := [recordFieldCount]uint32{
		fi.Timestamp,
		fi.Unknown,
		fi.MemoryOffset,
		fi.DecompressedSize,
		fi.FileOffset,
		fi.CompressedSize,
		fi.CompressedCRC32,
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[NameFieldSize+i*4:], v)
	}
	return b, nil
}

// DecodeDirectory splits an inflated directory blob into records and
// decodes each one, in blob order. A trailing partial record is an error.
func DecodeDirectory(blob []byte) ([]FileInfo, error) {
	if len(blob)%RecordSize != 0 {
		return nil, decodeErrorf("directory", "%d bytes is not a multiple of the %d-byte record size", len(blob), RecordSize)
	}

	infos := make([]FileInfo, 0, len(blob)/RecordSize)
	for off := 0; off < len(blob); off += RecordSize {
		fi, err := DecodeFileInfo(blob[off : off+RecordSize])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", off/RecordSize, err)
		}
		infos = append(infos, fi)
	}
	return infos, nil
}
