package parser_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/ossyrian/mpak/internal/mpak"
	"github.com/ossyrian/mpak/internal/parser"
	"github.com/ossyrian/mpak/internal/testutil"
)

// buildHeader returns a preamble followed by the obfuscated header fields
func buildHeader(h mpak.Header) []byte {
	buf := new(bytes.Buffer)
	buf.Write(mpak.Preamble[:])
	buf.Write(mpak.EncodeHeader(h))
	return buf.Bytes()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMpakReader_ReadHeader(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    *mpak.Header
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid header",
			input: buildHeader(mpak.Header{
				DirCRC32:           0xDEADBEEF,
				DirCompressedSize:  300,
				NameCompressedSize: 16,
				FileCount:          1,
			}),
			want: &mpak.Header{
				DirCRC32:           0xDEADBEEF,
				DirCompressedSize:  300,
				NameCompressedSize: 16,
				FileCount:          1,
			},
		},
		{
			name:  "preamble is not interpreted",
			input: append([]byte("XXXXX"), mpak.EncodeHeader(mpak.Header{FileCount: 7})...),
			want:  &mpak.Header{FileCount: 7},
		},
		{
			name:  "raw keystream decodes to zero",
			input: append([]byte("DFMP\x00"), 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15),
			want:  &mpak.Header{},
		},
		{
			name:    "EOF when reading dir crc32",
			input:   []byte("DFMP\x00\x00\x01"),
			wantErr: true,
			errMsg:  "failed to read dir crc32",
		},
		{
			name:    "EOF when reading name compressed size",
			input:   buildHeader(mpak.Header{})[:5+9],
			wantErr: true,
			errMsg:  "failed to read name compressed size",
		},
		{
			name:    "EOF when reading file count",
			input:   buildHeader(mpak.Header{})[:5+15],
			wantErr: true,
			errMsg:  "failed to read file count",
		},
		{
			name:    "preamble only",
			input:   []byte("DFMP\x00"),
			wantErr: true,
			errMsg:  "failed to read header",
		},
		{
			name:    "empty input",
			input:   []byte{},
			wantErr: true,
			errMsg:  "failed to read header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parser.NewReader(bytes.NewReader(tt.input), discardLogger())

			got, err := r.ReadHeader()

			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadHeader() succeeded unexpectedly, wanted error")
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ReadHeader() error = %v, should contain %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("ReadHeader() failed: %v", err)
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMpakReader_ReadName(t *testing.T) {
	tests := []struct {
		name    string
		input   func(t *testing.T) []byte
		want    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "display name",
			input: func(t *testing.T) []byte {
				b, _ := testutil.Archive{Name: "TestPack"}.MustBuild(t)
				return b
			},
			want: "TestPack",
		},
		{
			name: "empty display name",
			input: func(t *testing.T) []byte {
				b, _ := testutil.Archive{Name: ""}.MustBuild(t)
				return b
			},
			want: "",
		},
		{
			name: "truncated name blob",
			input: func(t *testing.T) []byte {
				b, layout := testutil.Archive{Name: "TestPack"}.MustBuild(t)
				return b[:mpak.DataBaseOffset+int(layout.Header.NameCompressedSize)-1]
			},
			wantErr: true,
			errMsg:  "failed to read name blob",
		},
		{
			name: "name blob is not zlib",
			input: func(t *testing.T) []byte {
				b := buildHeader(mpak.Header{NameCompressedSize: 8})
				return append(b, []byte("TestPack")...)
			},
			wantErr: true,
			errMsg:  "failed to inflate name blob",
		},
		{
			name: "name is not UTF-8",
			input: func(t *testing.T) []byte {
				compressed, err := mpak.Deflate([]byte{0xFF, 0xFE})
				if err != nil {
					t.Fatal(err)
				}
				b := buildHeader(mpak.Header{NameCompressedSize: uint32(len(compressed))})
				return append(b, compressed...)
			},
			wantErr: true,
			errMsg:  "not valid UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parser.NewReader(bytes.NewReader(tt.input(t)), discardLogger())
			if _, err := r.ReadHeader(); err != nil {
				t.Fatalf("ReadHeader() failed: %v", err)
			}

			got, err := r.ReadName()

			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadName() succeeded unexpectedly, wanted error")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ReadName() error = %v, should contain %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("ReadName() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMpakReader_RequiresHeader(t *testing.T) {
	r := parser.NewReader(bytes.NewReader(nil), discardLogger())

	if _, err := r.ReadName(); err == nil || !strings.Contains(err.Error(), "header has not been read") {
		t.Errorf("ReadName() error = %v, want header has not been read", err)
	}
	if _, err := r.ReadDir(); err == nil || !strings.Contains(err.Error(), "header has not been read") {
		t.Errorf("ReadDir() error = %v, want header has not been read", err)
	}
}

func TestMpakReader_ReadDirRequiresName(t *testing.T) {
	input, _ := testutil.Archive{
		Name:  "TestPack",
		Files: []testutil.File{{Name: "hello.txt", Data: []byte("hello world")}},
	}.MustBuild(t)
	r := parser.NewReader(bytes.NewReader(input), discardLogger())

	if _, err := r.ReadHeader(); err != nil {
		t.Fatalf("ReadHeader() failed: %v", err)
	}

	got, err := r.ReadDir()
	if err == nil {
		t.Fatalf("ReadDir() = %v, want error before the name blob is read", got)
	}
	if !strings.Contains(err.Error(), "name has not been read") {
		t.Errorf("ReadDir() error = %v, should contain %q", err, "name has not been read")
	}

	// the reader is still usable in the right order
	if _, err := r.ReadName(); err != nil {
		t.Fatalf("ReadName() failed: %v", err)
	}
	entries, err := r.ReadDir()
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if _, ok := entries["hello.txt"]; !ok {
		t.Errorf("ReadDir() missing entry %q", "hello.txt")
	}
}

func TestMpakReader_ReadDir(t *testing.T) {
	tests := []struct {
		name      string
		archive   testutil.Archive
		wantNames []string
		wantErr   bool
		decodeErr bool
		errMsg    string
	}{
		{
			name: "single entry",
			archive: testutil.Archive{
				Name:  "TestPack",
				Files: []testutil.File{{Name: "hello.txt", Data: []byte("hello world")}},
			},
			wantNames: []string{"hello.txt"},
		},
		{
			name:      "no entries",
			archive:   testutil.Archive{Name: "Empty"},
			wantNames: []string{},
		},
		{
			name: "file count mismatch is tolerated",
			archive: testutil.Archive{
				Name:      "TestPack",
				Files:     []testutil.File{{Name: "a"}, {Name: "b"}},
				FileCount: testutil.Uint32(9),
			},
			wantNames: []string{"a", "b"},
		},
		{
			name: "directory is not a whole number of records",
			archive: testutil.Archive{
				Name:    "TestPack",
				DirBlob: make([]byte, mpak.RecordSize+10),
			},
			wantErr:   true,
			decodeErr: true,
			errMsg:    "not a multiple",
		},
		{
			name: "record without name terminator",
			archive: testutil.Archive{
				Name:    "TestPack",
				DirBlob: bytes.Repeat([]byte{'a'}, mpak.RecordSize),
			},
			wantErr:   true,
			decodeErr: true,
			errMsg:    "missing name terminator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, _ := tt.archive.MustBuild(t)
			r := parser.NewReader(bytes.NewReader(input), discardLogger())

			if _, err := r.ReadHeader(); err != nil {
				t.Fatalf("ReadHeader() failed: %v", err)
			}
			if _, err := r.ReadName(); err != nil {
				t.Fatalf("ReadName() failed: %v", err)
			}

			got, err := r.ReadDir()

			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadDir() succeeded unexpectedly, wanted error")
				}
				if tt.decodeErr && !errors.Is(err, mpak.ErrDecode) {
					t.Errorf("ReadDir() error = %v, want mpak.ErrDecode", err)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ReadDir() error = %v, should contain %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("ReadDir() failed: %v", err)
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("ReadDir() returned %d entries, want %d", len(got), len(tt.wantNames))
			}
			for _, name := range tt.wantNames {
				if _, ok := got[name]; !ok {
					t.Errorf("ReadDir() missing entry %q", name)
				}
			}
		})
	}
}
