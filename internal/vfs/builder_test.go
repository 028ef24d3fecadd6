package vfs

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/mimetype"
)

func entries(paths ...string) []archive.Entry {
	out := make([]archive.Entry, len(paths))
	for i, p := range paths {
		out[i] = archive.NewEntry(p, []byte("content of "+p))
	}
	return out
}

// failingEntry always fails to decode.
type failingEntry struct{ path string }

func (f failingEntry) Path() string { return f.path }
func (f failingEntry) IsDir() bool  { return false }
func (f failingEntry) Open(context.Context) ([]byte, error) {
	return nil, errors.New("corrupt deflate stream")
}

func TestDetectPrefix(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{[]string{"site/index.html", "site/a.js"}, "site/"},
		{[]string{"index.html", "site/a.js"}, ""},
		{[]string{"site/index.html", "other/a.js"}, ""},
		{[]string{"a/b/index.html", "a/c.js"}, "a/"},
		{[]string{"./index.html", "./css/a.css"}, "./"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := DetectPrefix(tt.paths); got != tt.want {
			t.Errorf("DetectPrefix(%v) = %q, want %q", tt.paths, got, tt.want)
		}
	}
}

func TestBuildStripsPrefix(t *testing.T) {
	store := blob.NewStore()
	scope := store.NewScope("test")

	table, err := Build(context.Background(), entries("site/index.html", "site/a.js"), scope, BuildOptions{Name: "t"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if table.Prefix != "site/" {
		t.Errorf("Prefix = %q", table.Prefix)
	}
	for _, key := range []string{"index.html", "a.js"} {
		rec, ok := table.Lookup(key)
		if !ok {
			t.Fatalf("missing key %q", key)
		}
		data, _, err := store.Get(rec.ID)
		if err != nil || string(data) != "content of site/"+key {
			t.Errorf("payload for %s = (%q, %v)", key, data, err)
		}
	}
	if table.EntryPath != "index.html" {
		t.Errorf("EntryPath = %q", table.EntryPath)
	}
}

func TestBuildKeepsKeysWithoutSharedPrefix(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	table, err := Build(context.Background(), entries("index.html", "site/a.js"), scope, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if table.Prefix != "" {
		t.Errorf("Prefix = %q, want empty", table.Prefix)
	}
	if _, ok := table.Lookup("site/a.js"); !ok {
		t.Error("expected unstripped key site/a.js")
	}
}

func TestBuildAssignsMIMETypes(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	table, err := Build(context.Background(), entries("index.html", "s.css", "blob.xyz"), scope, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[string]string{"index.html": mimetype.HTML, "s.css": mimetype.CSS, "blob.xyz": mimetype.Default}
	for key, mt := range want {
		rec, _ := table.Lookup(key)
		if rec == nil || rec.MIMEType != mt {
			t.Errorf("%s: MIME = %v, want %q", key, rec, mt)
		}
	}
}

func TestBuildEntryPointPriority(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	table, err := Build(context.Background(), entries("docs/index.html", "index.html", "b/index.html"), scope, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if table.EntryPath != "index.html" {
		t.Errorf("EntryPath = %q, want index.html", table.EntryPath)
	}

	table, err = Build(context.Background(), entries("x.css", "docs/index.html", "b/index.html"), scope, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if table.EntryPath != "docs/index.html" {
		t.Errorf("EntryPath = %q, want docs/index.html", table.EntryPath)
	}
}

func TestBuildMissingEntryPointReleasesEverything(t *testing.T) {
	store := blob.NewStore()
	scope := store.NewScope("test")

	_, err := Build(context.Background(), entries("style.css", "img.png"), scope, BuildOptions{Name: "t"})
	var me *MissingEntryPointError
	if !errors.As(err, &me) {
		t.Fatalf("expected MissingEntryPointError, got %v", err)
	}
	if store.Live() != 0 {
		t.Errorf("%d identifiers still allocated", store.Live())
	}
	allocated, released, live := scope.Stats()
	if allocated != 2 || released != 2 || live != 0 {
		t.Errorf("Stats = %d/%d/%d", allocated, released, live)
	}
}

func TestBuildDecodeErrorPolicy(t *testing.T) {
	list := append(entries("index.html", "a.css"), failingEntry{path: "broken.png"})

	store := blob.NewStore()
	_, err := Build(context.Background(), list, store.NewScope("abort"), BuildOptions{})
	var de *archive.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Path != "broken.png" {
		t.Errorf("DecodeError.Path = %q", de.Path)
	}
	if store.Live() != 0 {
		t.Errorf("abort left %d identifiers allocated", store.Live())
	}

	table, err := Build(context.Background(), list, store.NewScope("skip"), BuildOptions{DecodeErrors: DecodeSkip})
	if err != nil {
		t.Fatalf("Build with skip: %v", err)
	}
	if _, ok := table.Lookup("broken.png"); ok {
		t.Error("skipped entry should not be in the table")
	}
	if table.Len() != 2 {
		t.Errorf("Len = %d, want 2", table.Len())
	}
}

func TestBuildMaxEntryBytes(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	_, err := Build(context.Background(), entries("index.html"), scope, BuildOptions{MaxEntryBytes: 3})
	var de *archive.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError for oversized entry, got %v", err)
	}
}

func TestBuildFilters(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	list := entries("site/index.html", "site/app.js.map", "__MACOSX/site/._index.html")
	table, err := Build(context.Background(), list, scope, BuildOptions{
		Filter: archive.Filter{Exclude: append([]string{"*.map"}, archive.DefaultExcludes...)},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if table.Prefix != "site/" {
		t.Errorf("junk entries should not break prefix detection, Prefix = %q", table.Prefix)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestBuildSkipsDirectoriesAndRejectsEmpty(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	_, err := Build(context.Background(), []archive.Entry{archive.NewDirEntry("site/")}, scope, BuildOptions{})
	var fe *archive.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestBuildProgressIsMonotonic(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	var seen []float64
	_, err := Build(context.Background(), entries("index.html", "a", "b", "c"), scope, BuildOptions{
		Progress: func(f float64) { seen = append(seen, f) },
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(seen) != 4 || seen[len(seen)-1] != 1 {
		t.Fatalf("progress = %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("progress decreased: %v", seen)
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	store := blob.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, entries("index.html", "a.css"), store.NewScope("test"), BuildOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.Live() != 0 {
		t.Errorf("%d identifiers leaked", store.Live())
	}
}

func TestIdentifierMapExcludesMarkup(t *testing.T) {
	scope := blob.NewStore().NewScope("test")
	table, err := Build(context.Background(), entries("index.html", "about.html", "s.css"), scope, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m := table.IdentifierMap(true)
	if len(m) != 1 {
		t.Fatalf("map = %v, want only s.css", m)
	}
	if _, ok := m["s.css"]; !ok {
		t.Error("s.css missing from map")
	}
	if len(table.IdentifierMap(false)) != 3 {
		t.Error("full map should include markup")
	}
}

func TestPathContext(t *testing.T) {
	pc := NewPathContext("index.html")
	if pc.Path() != "index.html" {
		t.Errorf("Path = %q", pc.Path())
	}
	pc.Set("about/index.html")
	if pc.Path() != "about/index.html" {
		t.Errorf("Path after Set = %q", pc.Path())
	}
}
