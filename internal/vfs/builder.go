package vfs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/mimetype"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// EntryDocument is the file name that marks a site's entry point.
const EntryDocument = "index.html"

// MissingEntryPointError reports that no index.html exists after prefix
// stripping.
type MissingEntryPointError struct {
	Archive string
	Entries int
}

func (e *MissingEntryPointError) Error() string {
	return fmt.Sprintf("archive %s has no %s among %d entries", e.Archive, EntryDocument, e.Entries)
}

// DecodePolicy decides what happens when one entry cannot be decoded.
type DecodePolicy string

const (
	// DecodeAbort fails the whole build.
	DecodeAbort DecodePolicy = "abort"
	// DecodeSkip leaves the entry out of the table.
	DecodeSkip DecodePolicy = "skip"
)

// BuildOptions tune table construction.
type BuildOptions struct {
	// Name labels the archive in errors and logs.
	Name string
	// Filter selects entries. Exclude patterns are checked against raw and
	// stripped paths, include patterns against stripped paths only.
	Filter archive.Filter
	// DecodeErrors is DecodeAbort when empty.
	DecodeErrors DecodePolicy
	// MaxEntryBytes rejects larger payloads as decode errors when positive.
	MaxEntryBytes int64
	// Progress receives the fraction of entries processed.
	Progress func(fraction float64)
}

// DetectPrefix returns the leading directory shared by every path, including
// its trailing slash, or "" when the paths do not share one. The candidate is
// taken from the first path and every path is inspected before deciding.
func DetectPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	i := strings.Index(paths[0], "/")
	if i < 0 {
		return ""
	}
	candidate := paths[0][:i+1]
	for _, p := range paths {
		if !strings.HasPrefix(p, candidate) {
			return ""
		}
	}
	return candidate
}

// Build turns archive entries into a Table, allocating one identifier per
// file through scope. On any error every identifier allocated by Build is
// released before returning.
func Build(ctx context.Context, entries []archive.Entry, scope *blob.Scope, opts BuildOptions) (table *Table, err error) {
	if opts.DecodeErrors == "" {
		opts.DecodeErrors = DecodeAbort
	}
	junk := archive.Filter{Exclude: opts.Filter.Exclude}

	var files []archive.Entry
	for _, e := range entries {
		if e.IsDir() || !junk.Allows(e.Path()) {
			continue
		}
		files = append(files, e)
	}
	if len(files) == 0 {
		return nil, &archive.FormatError{Name: opts.Name}
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path()
	}
	prefix := DetectPrefix(paths)

	var allocated []blob.ID
	defer func() {
		if err != nil {
			for _, id := range allocated {
				scope.Release(id)
			}
		}
	}()

	table = NewTable()
	table.Prefix = prefix
	nestedEntry := ""
	last := 0.0

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key, ok := vpath.Normalize("", "/"+strings.TrimPrefix(f.Path(), prefix))
		if ok && key != "" && opts.Filter.Allows(key) {
			data, openErr := open(ctx, f, opts.MaxEntryBytes)
			switch {
			case openErr == nil:
				rec := &Record{Path: key, MIMEType: mimetype.ForPath(key), Size: len(data)}
				rec.ID = scope.Allocate(data, rec.MIMEType)
				allocated = append(allocated, rec.ID)
				if prev, replaced := table.Put(rec); replaced {
					scope.Release(prev.ID)
				}

				if key == EntryDocument && table.EntryPath != EntryDocument {
					table.EntryPath = key
				} else if nestedEntry == "" && strings.HasSuffix(key, "/"+EntryDocument) {
					nestedEntry = key
				}
			case errors.Is(openErr, context.Canceled), errors.Is(openErr, context.DeadlineExceeded):
				return nil, openErr
			case opts.DecodeErrors == DecodeSkip:
				log.Printf("vfs: skipping %s: %v", f.Path(), openErr)
			default:
				return nil, openErr
			}
		}

		if opts.Progress != nil {
			fraction := float64(i+1) / float64(len(files))
			if fraction > last {
				last = fraction
				opts.Progress(fraction)
			}
		}
	}

	if table.EntryPath == "" {
		table.EntryPath = nestedEntry
	}
	if table.EntryPath == "" {
		return nil, &MissingEntryPointError{Archive: opts.Name, Entries: table.Len()}
	}
	return table, nil
}

func open(ctx context.Context, e archive.Entry, maxBytes int64) ([]byte, error) {
	data, err := e.Open(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var de *archive.DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &archive.DecodeError{Path: e.Path(), Err: err}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, &archive.DecodeError{Path: e.Path(), Err: fmt.Errorf("entry is %d bytes, limit is %d", len(data), maxBytes)}
	}
	return data, nil
}
