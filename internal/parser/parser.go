package parser

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"

	"github.com/ossyrian/mpak/internal/mpak"
)

// MpakReader reads the header and directory of an Mpak file.
// It reads sequentially and only once; payloads are read later through
// an Archive.
type MpakReader struct {
	file   io.ReadSeeker
	logger *slog.Logger
	header *mpak.Header

	// nameRead is set once the name blob has been consumed, which leaves
	// the reader positioned at the directory blob.
	nameRead bool

	// dirChecksum is the CRC32 of the compressed directory blob as read,
	// kept for Verify. It is never compared while reading.
	dirChecksum uint32
}

// NewReader returns an MpakReader over rs. A nil logger uses slog.Default().
func NewReader(rs io.ReadSeeker, logger *slog.Logger) *MpakReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &MpakReader{file: rs, logger: logger}
}

// ReadHeader skips the preamble and decodes the XOR-obfuscated header
// fields. The reader is left positioned at the compressed name blob.
func (r *MpakReader) ReadHeader() (*mpak.Header, error) {
	if _, err := r.file.Seek(mpak.PreambleSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek past preamble: %w", err)
	}

	h, err := mpak.ReadHeader(r.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	r.logger.Info("header is valid",
		"dir_crc32", h.DirCRC32,
		"dir_compressed_size", h.DirCompressedSize,
		"name_compressed_size", h.NameCompressedSize,
		"file_count", h.FileCount,
	)

	r.header = &h
	r.nameRead = false
	return &h, nil
}

// ReadName reads and inflates the archive display name.
// ReadHeader must have been called first.
func (r *MpakReader) ReadName() (string, error) {
	if r.header == nil {
		return "", errors.New("header has not been read")
	}

	compressed, err := readBlob(r.file, r.header.NameCompressedSize)
	if err != nil {
		return "", fmt.Errorf("failed to read name blob: %w", err)
	}

	name, err := mpak.InflateString(compressed)
	if err != nil {
		return "", fmt.Errorf("failed to inflate name blob: %w", err)
	}

	r.nameRead = true
	r.logger.Debug("read archive name", "name", name)
	return name, nil
}

// ReadDir reads, inflates and decodes the directory. Entries are keyed by
// name; a later record replaces an earlier one with the same name.
// ReadName must have been called first.
func (r *MpakReader) ReadDir() (map[string]mpak.FileInfo, error) {
	if r.header == nil {
		return nil, errors.New("header has not been read")
	}
	if !r.nameRead {
		return nil, errors.New("name has not been read")
	}

	compressed, err := readBlob(r.file, r.header.DirCompressedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory blob: %w", err)
	}
	r.dirChecksum = crc32.ChecksumIEEE(compressed)

	blob, err := mpak.Inflate(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate directory blob: %w", err)
	}

	infos, err := mpak.DecodeDirectory(blob)
	if err != nil {
		return nil, err
	}

	if len(infos) != int(r.header.FileCount) {
		r.logger.Warn("directory record count differs from header file count",
			"records", len(infos),
			"file_count", r.header.FileCount,
		)
	}

	entries := make(map[string]mpak.FileInfo, len(infos))
	for i, fi := range infos {
		if _, dup := entries[fi.Name]; dup {
			r.logger.Debug("duplicate directory entry replaces earlier one", "index", i, "name", fi.Name)
		}
		entries[fi.Name] = fi

		r.logger.Debug("read directory entry",
			"index", i,
			"name", fi.Name,
			"file_offset", fi.FileOffset,
			"compressed_size", fi.CompressedSize,
			"decompressed_size", fi.DecompressedSize,
		)
	}

	r.logger.Info("read directory",
		"entry_count", len(entries),
	)

	return entries, nil
}

// readBlob reads exactly n bytes. The buffer grows with the data actually
// read, so a bogus size in a truncated file fails without a huge allocation.
func readBlob(r io.Reader, n uint32) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("want %d bytes, got %d: %w", n, buf.Len(), io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
