package mpak

// Header holds the de-obfuscated header fields of an Mpak file.
type Header struct {
	DirCRC32           uint32 // checksum of the compressed directory blob (not verified on read)
	DirCompressedSize  uint32 // size of the compressed directory blob
	NameCompressedSize uint32 // size of the compressed archive name blob
	FileCount          uint32 // declared entry count, informational only
}

// DataOffset returns the absolute offset where the payload region begins,
// i.e. the first byte after the directory blob.
func (h Header) DataOffset() int64 {
	return DataBaseOffset + int64(h.NameCompressedSize) + int64(h.DirCompressedSize)
}

// FileInfo contains the metadata for a single directory record.
type FileInfo struct {
	Name             string
	Timestamp        uint32
	Unknown          uint32 // opaque, preserved verbatim
	MemoryOffset     uint32 // unused by extraction
	DecompressedSize uint32
	FileOffset       uint32 // relative to Header.DataOffset
	CompressedSize   uint32
	CompressedCRC32  uint32 // not verified on read
}
