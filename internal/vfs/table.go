// Package vfs holds the virtual file table built from an archive and the
// shared virtual path context used to resolve relative references.
package vfs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/mimetype"
)

// Record binds a normalized archive path to the identifier of its content.
type Record struct {
	Path     string  `json:"path"`
	MIMEType string  `json:"mime_type"`
	ID       blob.ID `json:"id"`
	Size     int     `json:"size"`
}

// IsMarkup reports whether the record is an HTML document.
func (r *Record) IsMarkup() bool { return mimetype.IsMarkup(r.MIMEType) }

// IsStylesheet reports whether the record is a CSS file.
func (r *Record) IsStylesheet() bool { return mimetype.IsStylesheet(r.MIMEType) }

// Table maps normalized paths to records. It is written while a session is
// extracting and rewriting and is read-only afterwards.
type Table struct {
	records map[string]*Record

	// EntryPath is the normalized path of the entry document.
	EntryPath string
	// Prefix is the shared leading directory stripped from every entry.
	Prefix string
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{records: make(map[string]*Record)}
}

// Lookup returns the record stored under key.
func (t *Table) Lookup(key string) (*Record, bool) {
	r, ok := t.records[key]
	return r, ok
}

// Put inserts rec, returning the record it replaced, if any.
func (t *Table) Put(rec *Record) (*Record, bool) {
	prev, ok := t.records[rec.Path]
	t.records[rec.Path] = rec
	return prev, ok
}

// SetID points the record at key to a new identifier.
func (t *Table) SetID(key string, id blob.ID, size int) error {
	r, ok := t.records[key]
	if !ok {
		return fmt.Errorf("vfs: no record for %q", key)
	}
	r.ID = id
	r.Size = size
	return nil
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Entry returns the entry document record.
func (t *Table) Entry() (*Record, bool) {
	if t.EntryPath == "" {
		return nil, false
	}
	return t.Lookup(t.EntryPath)
}

// Records returns every record sorted by path.
func (t *Table) Records() []*Record {
	out := make([]*Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IdentifierMap returns path to identifier for every record, leaving out
// markup documents when excludeMarkup is set.
func (t *Table) IdentifierMap(excludeMarkup bool) map[string]string {
	out := make(map[string]string, len(t.records))
	for p, r := range t.records {
		if excludeMarkup && r.IsMarkup() {
			continue
		}
		out[p] = string(r.ID)
	}
	return out
}

// PathContext is the current base path used for relative resolution. One
// instance is shared by the session, its interception layers and the
// navigation coordinator.
type PathContext struct {
	mu   sync.RWMutex
	path string
}

// NewPathContext creates a context starting at initial.
func NewPathContext(initial string) *PathContext {
	return &PathContext{path: initial}
}

// Path returns the current base path.
func (c *PathContext) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Set replaces the current base path.
func (c *PathContext) Set(p string) {
	c.mu.Lock()
	c.path = p
	c.mu.Unlock()
}
