package rewrite

import (
	"context"
	"strings"
	"testing"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/vfs"
)

func fixedLookup(m map[string]string, markup ...string) Lookup {
	pages := map[string]bool{}
	for _, p := range markup {
		pages[p] = true
	}
	return func(key string) (blob.ID, bool, bool) {
		id, ok := m[key]
		return blob.ID(id), pages[key], ok
	}
}

func TestRewriteStylesheet(t *testing.T) {
	lookup := fixedLookup(map[string]string{
		"img/bg.png":    "/~zipsite/blob/1",
		"fonts/a.woff":  "/~zipsite/blob/2",
		"css/b.css":     "/~zipsite/blob/3",
		"css/print.css": "/~zipsite/blob/4",
	})
	in := `@import "b.css"; @import 'print.css' print; @import "missing.css"; @import "https://cdn/reset.css";` +
		`body{background:url("../img/bg.png")} @font-face{src:url( '../fonts/a.woff?v=2' )} .x{background:url(https://cdn/x.png)} .y{background:url(missing.png)}`
	got := string(RewriteStylesheet("css/site.css", []byte(in), lookup))

	for _, want := range []string{
		`@import "/~zipsite/blob/3";`,
		`@import '/~zipsite/blob/4' print;`,
		`@import "missing.css";`,
		`@import "https://cdn/reset.css";`,
		`url("/~zipsite/blob/1")`,
		`url('/~zipsite/blob/2?v=2')`,
		`url(https://cdn/x.png)`,
		`url(missing.png)`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %s:\n%s", want, got)
		}
	}
}

func TestRewriteMarkupAttributes(t *testing.T) {
	lookup := fixedLookup(map[string]string{
		"about/index.html": "/~zipsite/blob/page",
		"app.js":           "/~zipsite/blob/js",
		"logo.png":         "/~zipsite/blob/logo",
		"frame.html":       "/~zipsite/blob/frame",
	}, "about/index.html", "frame.html")

	in := `<html><head><title>t</title></head><body>` +
		`<a href="about/index.html">About</a>` +
		`<img src='logo.png#top' data-src="logo.png">` +
		`<script src=app.js></script>` +
		`<iframe src="frame.html"></iframe>` +
		`<a href="https://example.com">x</a>` +
		`</body></html>`
	got := string(RewriteMarkup("index.html", []byte(in), lookup, Bootstrap{DefaultBasePath: "index.html"}, 16))

	for _, want := range []string{
		`href="about/index.html"`,
		`src='/~zipsite/blob/logo#top'`,
		`data-src="logo.png"`,
		`src=/~zipsite/blob/js`,
		`src="/~zipsite/blob/frame"`,
		`href="https://example.com"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %s", want)
		}
	}
}

func TestRewriteMarkupModulesAndInlineStyles(t *testing.T) {
	lookup := fixedLookup(map[string]string{"lib/util.js": "/~zipsite/blob/u", "bg.png": "/~zipsite/blob/bg"})
	in := `<head></head><script type="module">import { a } from "./lib/util.js"; import './lib/util.js'; const m = import("./lib/util.js");</script>` +
		`<div style="background:url(bg.png)"></div>`
	got := string(RewriteMarkup("index.html", []byte(in), lookup, Bootstrap{}, 0))

	if n := strings.Count(got, "/~zipsite/blob/u"); n != 3 {
		t.Errorf("rewrote %d module specifiers, want 3:\n%s", n, got)
	}
	if !strings.Contains(got, "url(/~zipsite/blob/bg)") {
		t.Error("inline url() not rewritten")
	}
}

func TestInjectBootstrapPlacement(t *testing.T) {
	boot := Bootstrap{PathToIdentifier: map[string]string{"a.css": "/~zipsite/blob/a"}, DefaultBasePath: "index.html"}

	withHead := InjectBootstrap(`<html><head lang="en"><title>x</title></head></html>`, boot, 16)
	if !strings.HasPrefix(withHead, `<html><head lang="en">`+bootOpen) {
		t.Errorf("bootstrap not placed after <head>: %s", withHead[:60])
	}

	header := InjectBootstrap(`<header>no head here</header>`, boot, 16)
	if !strings.HasPrefix(header, bootOpen) {
		t.Error("bootstrap should be prepended when there is no head tag")
	}

	parsed, ok := ParseBootstrap(withHead)
	if !ok {
		t.Fatal("ParseBootstrap failed")
	}
	if parsed.DefaultBasePath != "index.html" || parsed.PathToIdentifier["a.css"] != "/~zipsite/blob/a" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestBootstrapPayloadCannotCloseScript(t *testing.T) {
	boot := Bootstrap{PathToIdentifier: map[string]string{"</script><b>.css": "/~zipsite/blob/x"}}
	script := boot.Script(16)
	if strings.Count(script, "</script>") != 2 {
		t.Errorf("payload broke out of its script tag: %s", script[:120])
	}
}

func TestRuntimeDelay(t *testing.T) {
	js := Runtime(42)
	if !strings.Contains(js, "var DELAY = 42;") {
		t.Error("delay not substituted")
	}
	if strings.Contains(js, "</script>") {
		t.Error("runtime must not contain a closing script tag")
	}
}

func TestRuntimeInterceptsClicks(t *testing.T) {
	js := Runtime(16)

	listener := strings.Index(js, `document.addEventListener("click"`)
	if listener < 0 {
		t.Fatal("runtime installs no click listener")
	}
	if !strings.Contains(js[listener:], "}, true);") {
		t.Error("click listener must run in the capture phase")
	}

	setPath := strings.Index(js, "host.setPath(hit.key)")
	navigate := strings.Index(js, "location.href = hit.id + hit.suffix")
	if setPath < 0 || navigate < 0 || setPath > navigate {
		t.Errorf("path context must move before navigation (setPath at %d, navigate at %d)", setPath, navigate)
	}
	if !strings.Contains(js[listener:navigate], "e.preventDefault()") {
		t.Error("claimed clicks must prevent the default action")
	}

	if !strings.Contains(js, "window.parent.__zipsiteHost") {
		t.Error("runtime must inherit the parent context's host")
	}
	if !strings.Contains(js, "window.__zipsiteHost = host") {
		t.Error("runtime must expose its host to nested contexts")
	}
}

func TestRewriteMarkupIsIdempotent(t *testing.T) {
	lookup := fixedLookup(map[string]string{"a.css": "/~zipsite/blob/a", "other.html": "/~zipsite/blob/o"}, "other.html")
	boot := Bootstrap{PathToIdentifier: map[string]string{"a.css": "/~zipsite/blob/a"}, DefaultBasePath: "index.html"}
	in := []byte(`<html><head><link rel="stylesheet" href="a.css"></head><body><a href="other.html">o</a></body></html>`)

	once := RewriteMarkup("index.html", in, lookup, boot, 16)
	twice := RewriteMarkup("index.html", once, lookup, boot, 16)
	if string(once) != string(twice) {
		t.Errorf("second pass changed output:\n%s\n---\n%s", once, twice)
	}
	if strings.Count(string(twice), bootOpen) != 1 {
		t.Error("bootstrap injected more than once")
	}
}

func buildTable(t *testing.T, files map[string]string) (*vfs.Table, *blob.Store, *blob.Scope) {
	t.Helper()
	var list []archive.Entry
	for p, body := range files {
		list = append(list, archive.NewEntry(p, []byte(body)))
	}
	store := blob.NewStore()
	scope := store.NewScope("test")
	table, err := vfs.Build(context.Background(), list, scope, vfs.BuildOptions{Name: "t"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return table, store, scope
}

func TestRewriteAll(t *testing.T) {
	table, store, scope := buildTable(t, map[string]string{
		"index.html":       `<head></head><link href="css/site.css" rel="stylesheet"><iframe src="embed.html"></iframe><a href="embed.html">e</a>`,
		"embed.html":       `<p>embedded</p>`,
		"css/site.css":     `body{background:url(../img/bg.png)}`,
		"img/bg.png":       "PNG",
		"scripts/later.js": "fetch('data.json')",
	})
	before, _ := table.Lookup("index.html")
	oldIndex := before.ID
	before, _ = table.Lookup("css/site.css")
	oldCSS := before.ID

	var seen []float64
	if err := New(table, scope, 16).RewriteAll(context.Background(), func(f float64) { seen = append(seen, f) }); err != nil {
		t.Fatalf("RewriteAll: %v", err)
	}
	if len(seen) != 3 || seen[2] != 1 {
		t.Errorf("progress = %v", seen)
	}

	for _, old := range []blob.ID{oldIndex, oldCSS} {
		if _, _, err := store.Get(old); err != blob.ErrReleased {
			t.Errorf("superseded identifier %s: err = %v, want ErrReleased", old, err)
		}
	}

	css, _ := table.Lookup("css/site.css")
	bg, _ := table.Lookup("img/bg.png")
	data, _, err := store.Get(css.ID)
	if err != nil {
		t.Fatalf("Get css: %v", err)
	}
	if !strings.Contains(string(data), "url("+string(bg.ID)+")") {
		t.Errorf("stylesheet not rewritten: %s", data)
	}

	index, _ := table.Lookup("index.html")
	embed, _ := table.Lookup("embed.html")
	data, _, err = store.Get(index.ID)
	if err != nil {
		t.Fatalf("Get index: %v", err)
	}
	doc := string(data)
	if !strings.Contains(doc, `href="`+string(css.ID)+`"`) {
		t.Error("stylesheet link should carry the rewritten stylesheet identifier")
	}
	if !strings.Contains(doc, `src="`+string(embed.ID)+`"`) {
		t.Error("iframe src should carry the final markup identifier")
	}
	if !strings.Contains(doc, `href="embed.html"`) {
		t.Error("anchor href to markup must stay untouched")
	}
	if _, _, err := store.Get(embed.ID); err != nil {
		t.Errorf("embedded document identifier not dereferenceable: %v", err)
	}

	boot, ok := ParseBootstrap(doc)
	if !ok {
		t.Fatal("no bootstrap in rewritten document")
	}
	if _, ok := boot.PathToIdentifier["embed.html"]; ok {
		t.Error("bootstrap map must not contain markup documents")
	}
	if boot.PathToIdentifier["scripts/later.js"] == "" {
		t.Error("bootstrap map missing script")
	}
	if boot.DefaultBasePath != "index.html" {
		t.Errorf("DefaultBasePath = %q", boot.DefaultBasePath)
	}

	_, _, live := scope.Stats()
	if live != table.Len() {
		t.Errorf("scope holds %d identifiers, table has %d records", live, table.Len())
	}
}

func TestRewriteAllStylesheetImports(t *testing.T) {
	table, store, scope := buildTable(t, map[string]string{
		"index.html": `<head></head><link href="a.css" rel="stylesheet">`,
		"a.css":      `@import url("b.css"); @import 'c.css';`,
		"b.css":      `@import "a.css"; b{}`,
		"c.css":      `c{}`,
	})
	old := map[string]blob.ID{}
	for _, p := range []string{"a.css", "b.css", "c.css"} {
		rec, _ := table.Lookup(p)
		old[p] = rec.ID
	}

	if err := New(table, scope, 16).RewriteAll(context.Background(), nil); err != nil {
		t.Fatalf("RewriteAll: %v", err)
	}

	final := map[string]blob.ID{}
	for p, id := range old {
		rec, _ := table.Lookup(p)
		final[p] = rec.ID
		if _, _, err := store.Get(id); err != blob.ErrReleased {
			t.Errorf("%s: old identifier err = %v, want ErrReleased", p, err)
		}
	}

	for _, tc := range []struct {
		sheet string
		want  []string
	}{
		{"a.css", []string{`url("` + string(final["b.css"]) + `")`, `'` + string(final["c.css"]) + `'`}},
		{"b.css", []string{`@import "` + string(final["a.css"]) + `";`}},
	} {
		data, _, err := store.Get(final[tc.sheet])
		if err != nil {
			t.Fatalf("Get %s: %v", tc.sheet, err)
		}
		for _, want := range tc.want {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s missing %s:\n%s", tc.sheet, want, data)
			}
		}
	}
	for p, id := range final {
		if _, _, err := store.Get(id); err != nil {
			t.Errorf("%s: imported identifier not live: %v", p, err)
		}
	}
}

func TestRewriteAllCancelled(t *testing.T) {
	table, _, scope := buildTable(t, map[string]string{"index.html": "<p>x</p>", "a.css": "a{}"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(table, scope, 16).RewriteAll(ctx, nil); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
