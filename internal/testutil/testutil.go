// Package testutil builds Mpak fixtures for tests.
package testutil

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/ossyrian/mpak/internal/mpak"
)

// File is one entry of a fixture archive.
type File struct {
	Name      string
	Data      []byte
	Timestamp uint32

	// DecompressedSize overrides the size written to the directory when non-nil.
	DecompressedSize *uint32
	// CRC32 overrides the stored compressed CRC32 when non-nil.
	CRC32 *uint32
}

// Archive describes a fixture archive.
type Archive struct {
	Name  string
	Files []File

	// FileCount overrides the header file count when non-nil.
	FileCount *uint32
	// DirBlob replaces the inflated directory blob when non-nil.
	DirBlob []byte
	// DirCRC32 overrides the header directory checksum when non-nil.
	DirCRC32 *uint32
}

// Layout records where each region of a built fixture ended up.
type Layout struct {
	Header     mpak.Header
	DataOffset int64
	Offsets    map[string]int64 // absolute payload offset per file name
}

// Build assembles the archive bytes: preamble, obfuscated header, deflated
// name and directory blobs, then the deflated payloads back to back.
func (a Archive) Build() ([]byte, Layout, error) {
	var (
		payloads bytes.Buffer
		dir      bytes.Buffer
		relative = make(map[string]int64, len(a.Files))
	)

	for _, f := range a.Files {
		compressed, err := mpak.Deflate(f.Data)
		if err != nil {
			return nil, Layout{}, fmt.Errorf("deflate %s: %w", f.Name, err)
		}

		fi := mpak.FileInfo{
			Name:             f.Name,
			Timestamp:        f.Timestamp,
			DecompressedSize: uint32(len(f.Data)),
			FileOffset:       uint32(payloads.Len()),
			CompressedSize:   uint32(len(compressed)),
			CompressedCRC32:  crc32.ChecksumIEEE(compressed),
		}
		if f.DecompressedSize != nil {
			fi.DecompressedSize = *f.DecompressedSize
		}
		if f.CRC32 != nil {
			fi.CompressedCRC32 = *f.CRC32
		}

		record, err := fi.MarshalBinary()
		if err != nil {
			return nil, Layout{}, err
		}
		dir.Write(record)
		relative[f.Name] = int64(fi.FileOffset)
		payloads.Write(compressed)
	}

	dirBlob := dir.Bytes()
	if a.DirBlob != nil {
		dirBlob = a.DirBlob
	}

	nameCompressed, err := mpak.Deflate([]byte(a.Name))
	if err != nil {
		return nil, Layout{}, fmt.Errorf("deflate name: %w", err)
	}
	dirCompressed, err := mpak.Deflate(dirBlob)
	if err != nil {
		return nil, Layout{}, fmt.Errorf("deflate directory: %w", err)
	}

	h := mpak.Header{
		DirCRC32:           crc32.ChecksumIEEE(dirCompressed),
		DirCompressedSize:  uint32(len(dirCompressed)),
		NameCompressedSize: uint32(len(nameCompressed)),
		FileCount:          uint32(len(a.Files)),
	}
	if a.FileCount != nil {
		h.FileCount = *a.FileCount
	}
	if a.DirCRC32 != nil {
		h.DirCRC32 = *a.DirCRC32
	}

	var out bytes.Buffer
	out.Write(mpak.Preamble[:])
	out.Write(mpak.EncodeHeader(h))
	out.Write(nameCompressed)
	out.Write(dirCompressed)
	out.Write(payloads.Bytes())

	layout := Layout{
		Header:     h,
		DataOffset: h.DataOffset(),
		Offsets:    make(map[string]int64, len(relative)),
	}
	for name, off := range relative {
		layout.Offsets[name] = layout.DataOffset + off
	}

	return out.Bytes(), layout, nil
}

// MustBuild is Build for tests.
func (a Archive) MustBuild(t testing.TB) ([]byte, Layout) {
	t.Helper()
	b, layout, err := a.Build()
	if err != nil {
		t.Fatalf("failed to build fixture archive: %v", err)
	}
	return b, layout
}

// Uint32 returns a pointer to v, for the override fields.
func Uint32(v uint32) *uint32 {
	return &v
}
