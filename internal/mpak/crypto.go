package mpak

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Keystream de-obfuscates the Mpak header field region.
//
// Each byte is XORed with a single key byte which starts at 0 and is
// incremented after every byte, not after every field. Across the four
// header fields the key therefore runs 0, 1, 2, ..., 15.
//
// The key is explicit state: callers must read the fields in file order
// through the same Keystream.
type Keystream struct {
	key byte
}

// Key returns the key byte that will be applied to the next byte.
func (k *Keystream) Key() byte {
	return k.key
}

// XOR applies the keystream to b in place and advances the key by len(b).
func (k *Keystream) XOR(b []byte) {
	for i := range b {
		b[i] ^= k.key
		k.key++
	}
}

// ReadUint32 reads four bytes from r, de-obfuscates them and decodes
// a little-endian uint32.
func (k *Keystream) ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read obfuscated uint32: %w", err)
	}
	k.XOR(buf[:])
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadHeader decodes the header fields from r, which must be positioned
// right after the preamble. The field order is fixed by the format.
func ReadHeader(r io.Reader) (Header, error) {
	var (
		h  Header
		ks Keystream
	)

	fields := []struct {
		name string
		dst  *uint32
	}{
		{"dir crc32", &h.DirCRC32},
		{"dir compressed size", &h.DirCompressedSize},
		{"name compressed size", &h.NameCompressedSize},
		{"file count", &h.FileCount},
	}

	for _, f := range fields {
		v, err := ks.ReadUint32(r)
		if err != nil {
			return Header{}, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		*f.dst = v
	}

	return h, nil
}

// EncodeHeader is the inverse of ReadHeader. It returns the obfuscated
// 16-byte field region (without preamble).
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderFieldsSize)
	binary.LittleEndian.PutUint32(buf[0:], h.DirCRC32)
	binary.LittleEndian.PutUint32(buf[4:], h.DirCompressedSize)
	binary.LittleEndian.PutUint32(buf[8:], h.NameCompressedSize)
	binary.LittleEndian.PutUint32(buf[12:], h.FileCount)

	var ks Keystream
	ks.XOR(buf)
	return buf
}
