package vpath

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		base, ref string
		want      string
		wantOK    bool
	}{
		{"a/b/index.html", "../c.css", "a/c.css", true},
		{"index.html", "./x.js", "x.js", true},
		{"a/b.html", "/abs/p.png", "abs/p.png", true},
		{"x.html", "https://ext/y.js", "", false},
		{"x.html", "//cdn.example.com/y.js", "", false},
		{"x.html", "data:image/png;base64,AAAA", "", false},
		{"x.html", "blob:http://localhost/1234", "", false},
		{"x.html", "/~zipsite/blob/abc", "", false},
		{"a/b/c.html", "../../../../d.png", "d.png", true},
		{"a/b/c.html", "./e/./f/../g.png", "a/b/e/g.png", true},
		{"a/b/c.html", "img//h.png", "a/b/img/h.png", true},
		{"", "plain.css", "plain.css", true},
		{"dir/", "x.css", "dir/x.css", true},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.base, tt.ref)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Normalize(%q, %q) = (%q, %v), want (%q, %v)", tt.base, tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeFixedPoint(t *testing.T) {
	refs := []string{"../c.css", "./x/./y/../z.js", "a/../../b", "..", ".", "p/q/r.png"}
	bases := []string{"index.html", "a/b/index.html", "deep/er/still/page.html"}
	for _, base := range bases {
		for _, ref := range refs {
			out, ok := Normalize(base, ref)
			if !ok {
				t.Fatalf("Normalize(%q, %q) unexpectedly external", base, ref)
			}
			again, ok := Normalize("root.html", out)
			if !ok || again != out {
				t.Errorf("re-normalizing %q from root gave %q", out, again)
			}
			abs, ok := Normalize(base, "/"+out)
			if !ok || abs != out {
				t.Errorf("re-normalizing /%q gave %q", out, abs)
			}
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	a, _ := Normalize("a/b/index.html", "../c.css")
	b, _ := Normalize("a/b/index.html", "../c.css")
	if a != b {
		t.Errorf("got %q then %q", a, b)
	}
}

func TestSplitSuffix(t *testing.T) {
	tests := []struct {
		ref, path, suffix string
	}{
		{"a.css", "a.css", ""},
		{"a.css?v=1", "a.css", "?v=1"},
		{"page.html#top", "page.html", "#top"},
		{"page.html?x=1#top", "page.html", "?x=1#top"},
		{"#only", "", "#only"},
	}
	for _, tt := range tests {
		p, s := SplitSuffix(tt.ref)
		if p != tt.path || s != tt.suffix {
			t.Errorf("SplitSuffix(%q) = (%q, %q), want (%q, %q)", tt.ref, p, s, tt.path, tt.suffix)
		}
	}
}

func TestResolve(t *testing.T) {
	key, suffix, ok := Resolve("docs/index.html", "../img/logo.png?v=2")
	if !ok || key != "img/logo.png" || suffix != "?v=2" {
		t.Errorf("Resolve = (%q, %q, %v)", key, suffix, ok)
	}
	if _, _, ok := Resolve("index.html", "#frag"); ok {
		t.Error("fragment-only reference should not resolve")
	}
}

func TestIsExternal(t *testing.T) {
	for _, ref := range []string{"http://a", "HTTPS://b", "ftp://c", "DATA:x", "/~zipsite/blob/1"} {
		if !IsExternal(ref) {
			t.Errorf("IsExternal(%q) = false", ref)
		}
	}
	for _, ref := range []string{"a.html", "/a.html", "../a", "mailto:x@y"} {
		if IsExternal(ref) {
			t.Errorf("IsExternal(%q) = true", ref)
		}
	}
}
