// Package extract writes, streams and digests the contents of an Mpak
// archive.
package extract

import (
	"context"
	_ "crypto/sha256" // digest.Canonical
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ossyrian/mpak/internal/mpak"
)

// Source is the read side of an archive. *parser.Archive implements it.
type Source interface {
	Name() string
	FileNames() []string
	Entry(name string) (mpak.FileInfo, bool)
	FileContents(name string) ([]byte, bool, error)
	OpenEntry(name string) (io.ReadCloser, bool, error)
}

// ErrUnsafeName is returned for entry names that would escape the target
// directory or are not flat file names.
var ErrUnsafeName = errors.New("unsafe entry name")

// ProgressFunc is called after each file is written with the number of
// bytes written. It may be called from several goroutines.
type ProgressFunc func(name string, n int64)

// Stats summarizes an extraction.
type Stats struct {
	Files   int
	Skipped int
	Bytes   int64
}

// Extractor writes archive entries to a filesystem.
type Extractor struct {
	fs        afero.Fs
	workers   int
	overwrite bool
	logger    *slog.Logger
	progress  ProgressFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers sets how many entries are extracted concurrently.
// Values < 1 use runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = n
	}
}

// WithOverwrite replaces files that already exist. By default they are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(e *Extractor) {
		e.overwrite = overwrite
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithProgress sets a callback invoked after each written file.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// New returns an Extractor writing to fsys.
func New(fsys afero.Fs, opts ...Option) *Extractor {
	e := &Extractor{
		fs:     fsys,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// ExtractAll writes every entry of src to dir/<name>. An empty dir means
// the archive display name, which must then be a local relative path.
// Names are validated before anything is written.
func (e *Extractor) ExtractAll(ctx context.Context, src Source, dir string) (Stats, error) {
	if dir == "" {
		dir = src.Name()
		if dir == "" {
			return Stats{}, errors.New("no target directory and archive has no name")
		}
		// the display name comes from the archive itself
		if !filepath.IsLocal(dir) {
			return Stats{}, fmt.Errorf("%w: archive name %q is not a local path", ErrUnsafeName, dir)
		}
	}

	names := src.FileNames()
	slices.Sort(names)

	if bad := lo.Filter(names, func(name string, _ int) bool { return !SafeName(name) }); len(bad) > 0 {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnsafeName, bad)
	}

	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	e.logger.Info("extracting", "dir", dir, "files", len(names), "workers", e.workers)

	var files, skipped, written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			path := filepath.Join(dir, name)
			if !e.overwrite {
				exists, err := afero.Exists(e.fs, path)
				if err != nil {
					return fmt.Errorf("failed to stat %s: %w", path, err)
				}
				if exists {
					e.logger.Debug("skipping existing file", "path", path)
					skipped.Add(1)
					return nil
				}
			}

			data, ok, err := src.FileContents(name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("entry %s disappeared from directory", name)
			}

			if err := afero.WriteFile(e.fs, path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			files.Add(1)
			written.Add(int64(len(data)))
			if e.progress != nil {
				e.progress(name, int64(len(data)))
			}
			e.logger.Debug("extracted file", "path", path, "size", len(data))
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return Stats{
		Files:   int(files.Load()),
		Skipped: int(skipped.Load()),
		Bytes:   written.Load(),
	}, err
}

// TotalSize returns the sum of the declared decompressed sizes of src.
func TotalSize(src Source) int64 {
	return lo.SumBy(src.FileNames(), func(name string) int64 {
		fi, _ := src.Entry(name)
		return int64(fi.DecompressedSize)
	})
}

// SafeName reports whether name can be written as a flat file name inside
// the target directory.
func SafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	return true
}

// Cat streams the named entries to w in order. Names not in the archive
// are returned in missing and skipped. If w is a closed pipe, Cat stops
// and returns without error.
func Cat(w io.Writer, src Source, names []string) (missing []string, err error) {
	for _, name := range names {
		rc, ok, err := src.OpenEntry(name)
		if err != nil {
			return missing, err
		}
		if !ok {
			missing = append(missing, name)
			continue
		}

		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			if errors.Is(err, syscall.EPIPE) {
				return missing, nil
			}
			return missing, fmt.Errorf("failed to copy %s: %w", name, err)
		}
	}
	return missing, nil
}

// Sum is the content digest of one entry.
type Sum struct {
	Name   string
	Digest digest.Digest
}

// Digests computes the canonical digest of the inflated content of each
// name. An empty names list means every entry, sorted.
func Digests(src Source, names []string) ([]Sum, error) {
	if len(names) == 0 {
		names = src.FileNames()
		slices.Sort(names)
	}

	sums := make([]Sum, 0, len(names))
	for _, name := range names {
		rc, ok, err := src.OpenEntry(name)
		if err != nil {
			return sums, err
		}
		if !ok {
			return sums, fmt.Errorf("file %s not found", name)
		}

		d, err := digest.FromReader(rc)
		rc.Close()
		if err != nil {
			return sums, fmt.Errorf("failed to digest %s: %w", name, err)
		}
		sums = append(sums, Sum{Name: name, Digest: d})
	}
	return sums, nil
}
