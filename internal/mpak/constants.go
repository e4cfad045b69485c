package mpak

// Preamble is the signature carried by the Mpak files seen so far ("DFMP\x00").
// It is not checked when reading.
var Preamble = [PreambleSize]byte{'D', 'F', 'M', 'P', 0x00}

const (
	// PreambleSize is the number of leading bytes skipped before the header.
	PreambleSize = 5

	// HeaderFieldsSize is the size of the XOR-obfuscated header field region:
	// four little-endian uint32 values.
	HeaderFieldsSize = 4 * 4

	// DataBaseOffset is where the compressed name blob starts. The directory
	// blob and the payload region follow it.
	DataBaseOffset = PreambleSize + HeaderFieldsSize

	// RecordSize is the size of one directory record.
	RecordSize = 284

	// NameFieldSize is the size of the NUL-terminated name field at the start
	// of a record. The numeric fields start right after it.
	NameFieldSize = 256

	// recordFieldCount is the number of uint32 fields after the name.
	recordFieldCount = 7
)
