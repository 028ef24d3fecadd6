package server

import (
	_ "embed"
	"net/http"
)

//go:embed shell.html
var shellHTML []byte

// serveShell serves the page that frames archived documents and owns the
// browser-side path context.
func serveShell(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(shellHTML)
}
