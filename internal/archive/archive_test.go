package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, files map[string]string, dirs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, d := range dirs {
		if _, err := zw.Create(d); err != nil {
			t.Fatalf("Create dir %s: %v", d, err)
		}
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func buildTar(t *testing.T, gzipped bool, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var tw *tar.Writer
	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(&buf)
		tw = tar.NewWriter(gz)
	} else {
		tw = tar.NewWriter(&buf)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "site/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatalf("WriteHeader dir: %v", err)
	}
	for name, content := range files {
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			t.Fatalf("gzip Close: %v", err)
		}
	}
	return buf.Bytes()
}

func readAll(t *testing.T, src Source) map[string]string {
	t.Helper()
	ctx := context.Background()
	entries, err := src.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	got := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := e.Open(ctx)
		if err != nil {
			t.Fatalf("Open %s: %v", e.Path(), err)
		}
		got[e.Path()] = string(data)
	}
	return got
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
		ok   bool
	}{
		{"site.zip", nil, FormatZip, true},
		{"SITE.TGZ", nil, FormatTarGz, true},
		{"site.tar.gz", nil, FormatTarGz, true},
		{"site.tar", nil, FormatTar, true},
		{"download", []byte("PK\x03\x04rest"), FormatZip, true},
		{"download", []byte{0x1f, 0x8b, 0x08}, FormatTarGz, true},
		{"notes.txt", []byte("hello"), "", false},
	}
	for _, tt := range tests {
		got, ok := DetectFormat(tt.name, tt.data)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DetectFormat(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestZipSource(t *testing.T) {
	data := buildZip(t, map[string]string{
		"site/index.html": "<h1>hi</h1>",
		"site/a.js":       "console.log(1)",
	}, "site/")

	src, err := FromBytes("site.zip", data)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if src.Name() != "site.zip" {
		t.Errorf("Name = %q", src.Name())
	}

	entries, err := src.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (1 dir), got %d", len(entries))
	}
	if !entries[0].IsDir() {
		t.Errorf("expected first entry to be the directory")
	}

	got := readAll(t, src)
	if got["site/index.html"] != "<h1>hi</h1>" || got["site/a.js"] != "console.log(1)" {
		t.Errorf("unexpected payloads: %v", got)
	}

	// A second enumeration sees the same entries.
	again, err := src.Entries(context.Background())
	if err != nil || len(again) != 3 {
		t.Errorf("second Entries = %d, %v", len(again), err)
	}
}

func TestTarSources(t *testing.T) {
	files := map[string]string{"site/index.html": "<p>x</p>", "site/s.css": "body{}"}
	for _, gz := range []bool{false, true} {
		name := "site.tar"
		if gz {
			name = "site.tar.gz"
		}
		src, err := FromBytes(name, buildTar(t, gz, files))
		if err != nil {
			t.Fatalf("FromBytes(%s): %v", name, err)
		}
		got := readAll(t, src)
		if len(got) != 2 || got["site/s.css"] != "body{}" {
			t.Errorf("%s: unexpected payloads %v", name, got)
		}
	}
}

func TestEmptyZipIsFormatError(t *testing.T) {
	src, err := FromBytes("empty.zip", buildZip(t, nil))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	_, err = src.Entries(context.Background())
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestGarbageIsFormatError(t *testing.T) {
	_, err := FromBytes("broken.zip", []byte("not a zip"))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}

	_, err = FromBytes("unknown", []byte("plain text"))
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError for unknown format, got %v", err)
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "site.zip")
	if err := os.WriteFile(p, buildZip(t, map[string]string{"index.html": "x"}), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := FromFile(p, 0)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if got := readAll(t, src); got["index.html"] != "x" {
		t.Errorf("unexpected payloads %v", got)
	}

	if _, err := FromFile(p, 4); err == nil {
		t.Error("expected size limit error")
	}
	if _, err := FromFile(filepath.Join(dir, "missing.zip"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEntryOpenHonoursContext(t *testing.T) {
	e := NewEntry("a.txt", []byte("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{SourceName: "none"}
	var fe *FormatError
	if _, err := src.Entries(context.Background()); !errors.As(err, &fe) {
		t.Errorf("expected FormatError for empty static source, got %v", err)
	}
}
