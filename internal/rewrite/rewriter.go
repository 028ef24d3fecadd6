// Package rewrite points static references inside archived markup and
// stylesheets at content identifiers and injects the runtime bootstrap.
//
// Rewriting is pattern based rather than a full parse. Text inside string
// literals or comments that looks like a reference may be rewritten too.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/vfs"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// Lookup resolves a normalized path to the identifier a rewritten reference
// should carry, and whether the target is a markup document.
type Lookup func(key string) (id blob.ID, markup bool, ok bool)

// TableLookup reads identifiers straight from a table.
func TableLookup(t *vfs.Table) Lookup {
	return func(key string) (blob.ID, bool, bool) {
		rec, ok := t.Lookup(key)
		if !ok {
			return "", false, false
		}
		return rec.ID, rec.IsMarkup(), true
	}
}

// Rewriter rewrites every stylesheet and markup record of one table.
type Rewriter struct {
	table        *vfs.Table
	scope        *blob.Scope
	runtimeDelay int
}

// New creates a Rewriter that allocates through scope. delayMillis is the
// reconciliation delay baked into the browser runtime.
func New(table *vfs.Table, scope *blob.Scope, delayMillis int) *Rewriter {
	return &Rewriter{table: table, scope: scope, runtimeDelay: delayMillis}
}

// RewriteAll rewrites stylesheets first, then markup. Every stylesheet and
// markup record gets its final identifier reserved before anything is
// rewritten, so references between files never point at a released
// identifier. progress receives the fraction of records processed.
func (rw *Rewriter) RewriteAll(ctx context.Context, progress func(float64)) error {
	var sheets, docs []*vfs.Record
	for _, rec := range rw.table.Records() {
		switch {
		case rec.IsStylesheet():
			sheets = append(sheets, rec)
		case rec.IsMarkup():
			docs = append(docs, rec)
		}
	}
	total := len(sheets) + len(docs)
	done := 0
	step := func() {
		done++
		if progress != nil && total > 0 {
			progress(float64(done) / float64(total))
		}
	}

	type slot struct {
		id     blob.ID
		markup bool
	}
	reserved := make(map[string]slot, total)
	for _, rec := range sheets {
		reserved[rec.Path] = slot{id: rw.scope.Reserve(rec.MIMEType)}
	}
	for _, rec := range docs {
		reserved[rec.Path] = slot{id: rw.scope.Reserve(rec.MIMEType), markup: true}
	}
	base := TableLookup(rw.table)
	lookup := func(key string) (blob.ID, bool, bool) {
		if s, ok := reserved[key]; ok {
			return s.id, s.markup, true
		}
		return base(key)
	}
	commit := func(rec *vfs.Record, out []byte) error {
		id := reserved[rec.Path].id
		if err := rw.scope.Fill(id, out); err != nil {
			return fmt.Errorf("storing %s: %w", rec.Path, err)
		}
		rw.scope.Release(rec.ID)
		if err := rw.table.SetID(rec.Path, id, len(out)); err != nil {
			return err
		}
		step()
		return nil
	}

	for _, rec := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, _, err := rw.scope.Get(rec.ID)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rec.Path, err)
		}
		if err := commit(rec, RewriteStylesheet(rec.Path, data, lookup)); err != nil {
			return err
		}
	}

	boot := rw.table.IdentifierMap(true)
	for _, rec := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, _, err := rw.scope.Get(rec.ID)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rec.Path, err)
		}
		out := RewriteMarkup(rec.Path, data, lookup, Bootstrap{
			PathToIdentifier: boot,
			DefaultBasePath:  rec.Path,
		}, rw.runtimeDelay)
		if err := commit(rec, out); err != nil {
			return err
		}
	}
	return nil
}

// resolveRef maps ref, found in the document at base, to its identifier.
// It returns false when ref is external or names no table entry.
func resolveRef(base, ref string, lookup Lookup) (value string, markup bool, ok bool) {
	key, suffix, ok := vpath.Resolve(base, strings.TrimSpace(ref))
	if !ok {
		return "", false, false
	}
	id, markup, ok := lookup(key)
	if !ok {
		return "", false, false
	}
	return string(id) + suffix, markup, true
}

// RewriteStylesheet replaces every url(...) and quoted @import that names a
// table entry.
func RewriteStylesheet(path string, content []byte, lookup Lookup) []byte {
	return []byte(rewriteURLs(path, string(content), lookup))
}

func rewriteURLs(path, src string, lookup Lookup) string {
	src = replaceQuoted(cssURLPattern, src, 0, 1, func(q quoted, _ []string) (string, bool) {
		value, _, ok := resolveRef(path, q.value, lookup)
		if !ok {
			return "", false
		}
		return "url(" + q.String(value) + ")", true
	})
	return replaceQuoted(cssImportPattern, src, 1, 2, func(q quoted, _ []string) (string, bool) {
		value, _, ok := resolveRef(path, q.value, lookup)
		if !ok {
			return "", false
		}
		return q.String(value), true
	})
}

// RewriteMarkup rewrites one HTML document and injects boot. Re-running it
// on its own output with the same inputs yields identical bytes.
func RewriteMarkup(path string, content []byte, lookup Lookup, boot Bootstrap, delayMillis int) []byte {
	src := StripBootstrap(string(content))

	src = replaceQuoted(attrPattern, src, 1, 3, func(q quoted, m []string) (string, bool) {
		value, markup, ok := resolveRef(path, q.value, lookup)
		if !ok {
			return "", false
		}
		if markup && strings.EqualFold(m[2], "href") {
			return "", false
		}
		return q.String(value), true
	})

	src = rewriteURLs(path, src, lookup)

	src = replaceQuoted(modulePattern, src, 1, 2, func(q quoted, _ []string) (string, bool) {
		value, _, ok := resolveRef(path, q.value, lookup)
		if !ok {
			return "", false
		}
		return q.String(value), true
	})

	return []byte(InjectBootstrap(src, boot, delayMillis))
}
