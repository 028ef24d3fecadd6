// Package archive decodes static-site archives into flat entry lists.
//
// Supported formats are zip, tar and gzip-compressed tar. Entries are held in
// memory; payloads are decompressed lazily when Open is called so the table
// builder can report progress per entry.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is a single file or directory inside an archive.
type Entry interface {
	// Path is the slash-separated path inside the archive.
	Path() string
	// IsDir reports whether the entry is a directory.
	IsDir() bool
	// Open materializes the entry's payload.
	Open(ctx context.Context) ([]byte, error)
}

// Source enumerates archive entries. Entries may be called more than once.
type Source interface {
	Name() string
	Entries(ctx context.Context) ([]Entry, error)
}

// Format identifies an archive container.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTar   Format = "tar"
	FormatTarGz Format = "tar.gz"
)

// DetectFormat determines the archive format from the file name, falling back
// to magic bytes when the name carries no recognized extension.
func DetectFormat(name string, data []byte) (Format, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, true
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, true
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, true
	}

	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		return FormatZip, true
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return FormatTarGz, true
	case len(data) > 262 && string(data[257:262]) == "ustar":
		return FormatTar, true
	}
	return "", false
}

// FromBytes returns a Source for an in-memory archive.
func FromBytes(name string, data []byte) (Source, error) {
	format, ok := DetectFormat(name, data)
	if !ok {
		return nil, &FormatError{Name: name, Err: fmt.Errorf("unrecognized archive format")}
	}
	switch format {
	case FormatZip:
		return newZipSource(name, data)
	case FormatTar:
		return newTarSource(name, data, false)
	default:
		return newTarSource(name, data, true)
	}
}

// FromFile reads the archive at path into memory.
func FromFile(path string, maxBytes int64) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, &FormatError{Name: path, Err: fmt.Errorf("archive is %d bytes, limit is %d", info.Size(), maxBytes)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return FromBytes(filepath.Base(path), data)
}

// memEntry is an entry whose payload is produced by a closure.
type memEntry struct {
	path string
	dir  bool
	open func() ([]byte, error)
}

func (e *memEntry) Path() string { return e.path }
func (e *memEntry) IsDir() bool  { return e.dir }

func (e *memEntry) Open(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.dir {
		return nil, &DecodeError{Path: e.path, Err: fmt.Errorf("is a directory")}
	}
	data, err := e.open()
	if err != nil {
		return nil, &DecodeError{Path: e.path, Err: err}
	}
	return data, nil
}

// NewEntry builds an entry from a literal payload. Used by callers that
// already hold decoded files.
func NewEntry(path string, data []byte) Entry {
	return &memEntry{path: path, open: func() ([]byte, error) { return data, nil }}
}

// NewDirEntry builds a directory entry.
func NewDirEntry(path string) Entry {
	return &memEntry{path: path, dir: true}
}

// StaticSource is a Source over a fixed entry list.
type StaticSource struct {
	SourceName string
	List       []Entry
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.List) == 0 {
		return nil, &FormatError{Name: s.SourceName}
	}
	return s.List, nil
}
