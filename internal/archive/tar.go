package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
)

// tarSource enumerates a tar stream. Tar has no central directory, so the
// stream is scanned once up front and payloads are kept as slices of the
// decompressed buffer.
type tarSource struct {
	name    string
	entries []Entry
}

func newTarSource(name string, data []byte, gzipped bool) (*tarSource, error) {
	var r io.Reader = bytes.NewReader(data)
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, &FormatError{Name: name, Err: fmt.Errorf("opening gzip stream: %w", err)}
		}
		defer gz.Close()
		r = gz
	}

	src := &tarSource{name: name}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Name: name, Err: fmt.Errorf("reading tar header: %w", err)}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			src.entries = append(src.entries, NewDirEntry(hdr.Name))
		case tar.TypeReg:
			payload, readErr := io.ReadAll(tr)
			entryName := hdr.Name
			src.entries = append(src.entries, &memEntry{
				path: entryName,
				open: func() ([]byte, error) {
					if readErr != nil {
						return nil, readErr
					}
					return payload, nil
				},
			})
		default:
			// Links, devices and pax headers carry no servable content.
		}
	}
	return src, nil
}

func (s *tarSource) Name() string { return s.name }

func (s *tarSource) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.entries) == 0 {
		return nil, &FormatError{Name: s.name}
	}
	return s.entries, nil
}
