package mpak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
)

// Uint32LE decodes a little-endian uint32 at off, failing if b is too short.
func Uint32LE(b []byte, off int) (uint32, error) {
	if off < 0 || off > len(b)-4 {
		return 0, decodeErrorf("uint32", "offset %d out of range for %d bytes", off, len(b))
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), nil
}

// Inflate decompresses a complete zlib stream. The decoder only lives for
// the duration of the call.
func Inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &DecodeError{Op: "zlib stream", Err: err}
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &DecodeError{Op: "zlib stream", Err: err}
	}
	return out, nil
}

// InflateString inflates a zlib stream which must hold UTF-8 text.
func InflateString(compressed []byte) (string, error) {
	out, err := Inflate(compressed)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", decodeErrorf("string", "inflated %d bytes are not valid UTF-8", len(out))
	}
	return string(out), nil
}

// Deflate compresses b into a zlib stream.
func Deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// NewInflater returns a streaming zlib reader over r. Read errors from the
// stream are reported as DecodeErrors unless they come from r itself.
func NewInflater(r io.Reader) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, &DecodeError{Op: "zlib stream", Err: err}
	}
	return zr, nil
}
