package parser

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ossyrian/mpak/internal/mpak"
)

// Source is the random-access input an Archive reads from.
// *os.File and afero.File both satisfy it.
type Source interface {
	io.ReaderAt
	io.Closer
}

// Archive is an opened Mpak file. Its directory is decoded once by Open
// and never changes afterwards. Payloads are read and inflated on every
// request.
//
// An Archive is safe for concurrent use: reads go through positional
// ReadAt calls, serialized by a lock so that sources with a shared cursor
// (such as in-memory afero files) behave too. Inflation runs outside the
// lock.
type Archive struct {
	src         Source
	ra          *lockedReaderAt
	logger      *slog.Logger
	path        string
	name        string
	header      mpak.Header
	entries     map[string]mpak.FileInfo
	dirChecksum uint32
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	path   string
}

// WithLogger sets the logger used while opening and reading.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens the Mpak file at path on the OS filesystem.
func Open(path string, opts ...Option) (*Archive, error) {
	return OpenFs(afero.NewOsFs(), path, opts...)
}

// OpenFs opens the Mpak file at path on fsys.
func OpenFs(fsys afero.Fs, path string, opts ...Option) (*Archive, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mpak file: %w", err)
	}

	a, err := NewArchive(f, append([]Option{withPath(path)}, opts...)...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

func withPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// NewArchive decodes the header and directory from src. On success the
// Archive owns src and closes it in Close. On failure src is left open.
func NewArchive(src Source, opts ...Option) (*Archive, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	logger := o.logger
	if o.path != "" {
		logger = logger.With("file", o.path)
	}

	ra := &lockedReaderAt{r: src}
	reader := NewReader(io.NewSectionReader(ra, 0, math.MaxInt64), logger)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, err
	}

	name, err := reader.ReadName()
	if err != nil {
		return nil, err
	}

	entries, err := reader.ReadDir()
	if err != nil {
		return nil, err
	}

	return &Archive{
		src:         src,
		ra:          ra,
		logger:      logger,
		path:        o.path,
		name:        name,
		header:      *header,
		entries:     entries,
		dirChecksum: reader.dirChecksum,
	}, nil
}

// Name returns the archive display name decoded from the name blob.
func (a *Archive) Name() string {
	return a.name
}

// Path returns the path the archive was opened from, if any.
func (a *Archive) Path() string {
	return a.path
}

// Header returns the decoded header fields.
func (a *Archive) Header() mpak.Header {
	return a.header
}

// Len returns the number of distinct entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// FileNames returns every entry name in unspecified order.
func (a *Archive) FileNames() []string {
	return lo.Keys(a.entries)
}

// Entry returns the directory metadata for name.
func (a *Archive) Entry(name string) (mpak.FileInfo, bool) {
	fi, ok := a.entries[name]
	return fi, ok
}

// FileContents reads and inflates the payload of name. A name that is not
// in the archive is reported by ok == false with a nil error.
func (a *Archive) FileContents(name string) (data []byte, ok bool, err error) {
	fi, ok := a.entries[name]
	if !ok {
		return nil, false, nil
	}

	compressed, err := a.readCompressed(fi)
	if err != nil {
		return nil, true, err
	}

	data, err = mpak.Inflate(compressed)
	if err != nil {
		return nil, true, fmt.Errorf("failed to inflate %s: %w", name, err)
	}

	if len(data) != int(fi.DecompressedSize) {
		a.logger.Warn("inflated size differs from directory entry",
			"name", name,
			"size", len(data),
			"decompressed_size", fi.DecompressedSize,
		)
	}

	return data, true, nil
}

// OpenEntry returns a streaming reader over the inflated payload of name.
// The caller must close it.
func (a *Archive) OpenEntry(name string) (rc io.ReadCloser, ok bool, err error) {
	fi, ok := a.entries[name]
	if !ok {
		return nil, false, nil
	}

	rc, err = mpak.NewInflater(a.section(fi))
	if err != nil {
		return nil, true, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return rc, true, nil
}

// Offset returns the absolute offset of the compressed payload of fi.
func (a *Archive) Offset(fi mpak.FileInfo) int64 {
	return a.header.DataOffset() + int64(fi.FileOffset)
}

// Close releases the underlying source.
func (a *Archive) Close() error {
	return a.src.Close()
}

func (a *Archive) section(fi mpak.FileInfo) *io.SectionReader {
	return io.NewSectionReader(a.ra, a.Offset(fi), int64(fi.CompressedSize))
}

func (a *Archive) readCompressed(fi mpak.FileInfo) ([]byte, error) {
	off := a.Offset(fi)
	a.logger.Debug("reading payload",
		"name", fi.Name,
		"offset", off,
		"compressed_size", fi.CompressedSize,
	)

	b, err := readBlob(a.section(fi), fi.CompressedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at offset %d: %w", fi.Name, off, err)
	}
	return b, nil
}

// lockedReaderAt serializes ReadAt calls on a source.
type lockedReaderAt struct {
	mu sync.Mutex
	r  io.ReaderAt
}

func (l *lockedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.ReadAt(p, off)
}
