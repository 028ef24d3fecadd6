package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
)

// zipSource enumerates a zip archive held in memory.
type zipSource struct {
	name   string
	reader *zip.Reader
}

func newZipSource(name string, data []byte) (*zipSource, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{Name: name, Err: fmt.Errorf("reading zip directory: %w", err)}
	}
	return &zipSource{name: name, reader: zr}, nil
}

func (s *zipSource) Name() string { return s.name }

func (s *zipSource) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.reader.File) == 0 {
		return nil, &FormatError{Name: s.name}
	}

	entries := make([]Entry, 0, len(s.reader.File))
	for _, f := range s.reader.File {
		f := f
		entries = append(entries, &memEntry{
			path: f.Name,
			dir:  f.FileInfo().IsDir(),
			open: func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return io.ReadAll(rc)
			},
		})
	}
	return entries, nil
}
