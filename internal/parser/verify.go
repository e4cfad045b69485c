package parser

import (
	"fmt"
	"hash/crc32"
	"slices"

	"github.com/ossyrian/mpak/internal/mpak"
)

// VerifyResult reports the stored checksums and sizes of one entry against
// what is actually in the archive.
type VerifyResult struct {
	Name         string
	ExpectedCRC  uint32 // CompressedCRC32 from the directory
	ActualCRC    uint32 // CRC32 (IEEE) of the compressed payload
	ExpectedSize uint32 // DecompressedSize from the directory
	ActualSize   int    // length after inflating
}

// CRCMatch reports whether the compressed payload matches its stored CRC32.
func (v VerifyResult) CRCMatch() bool {
	return v.ExpectedCRC == v.ActualCRC
}

// SizeMatch reports whether the inflated length matches the directory.
func (v VerifyResult) SizeMatch() bool {
	return v.ActualSize == int(v.ExpectedSize)
}

// OK reports whether every check passed.
func (v VerifyResult) OK() bool {
	return v.CRCMatch() && v.SizeMatch()
}

// Verify checks a single entry. Reading an archive never does this on its
// own; it is only run when asked for.
func (a *Archive) Verify(name string) (VerifyResult, bool, error) {
	fi, ok := a.entries[name]
	if !ok {
		return VerifyResult{}, false, nil
	}

	compressed, err := a.readCompressed(fi)
	if err != nil {
		return VerifyResult{}, true, err
	}

	data, err := mpak.Inflate(compressed)
	if err != nil {
		return VerifyResult{}, true, fmt.Errorf("failed to inflate %s: %w", name, err)
	}

	return VerifyResult{
		Name:         name,
		ExpectedCRC:  fi.CompressedCRC32,
		ActualCRC:    crc32.ChecksumIEEE(compressed),
		ExpectedSize: fi.DecompressedSize,
		ActualSize:   len(data),
	}, true, nil
}

// VerifyAll checks every entry, sorted by name. It stops at the first
// entry that cannot be read or inflated.
func (a *Archive) VerifyAll() ([]VerifyResult, error) {
	names := a.FileNames()
	slices.Sort(names)

	results := make([]VerifyResult, 0, len(names))
	for _, name := range names {
		res, _, err := a.Verify(name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// DirectoryCRCMatch reports whether the compressed directory blob matches
// the CRC32 stored in the header.
func (a *Archive) DirectoryCRCMatch() bool {
	return a.dirChecksum == a.header.DirCRC32
}
