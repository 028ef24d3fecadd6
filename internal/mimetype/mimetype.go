// Package mimetype maps archive file names to MIME types using a static
// extension table.
package mimetype

import (
	"path"
	"strings"
)

const (
	// HTML is the markup type rewritten and navigated between.
	HTML = "text/html"
	// CSS is the stylesheet type rewritten for url() references.
	CSS = "text/css"
	// Default is returned for unknown extensions.
	Default = "application/octet-stream"
)

// extensionToType maps lower-case file extensions to MIME types.
var extensionToType = map[string]string{
	// Markup
	".html":  HTML,
	".htm":   HTML,
	".xhtml": "application/xhtml+xml",
	// Styles
	".css": CSS,
	// Scripts
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".cjs":  "text/javascript",
	".json": "application/json",
	".map":  "application/json",
	".wasm": "application/wasm",
	// Text
	".txt": "text/plain",
	".md":  "text/markdown",
	".xml": "application/xml",
	".csv": "text/csv",
	// Images
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",
	// Fonts
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	// Video
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".mov":  "video/quicktime",
	".vtt":  "text/vtt",
	// Documents
	".pdf": "application/pdf",
}

// ForPath returns the MIME type for the given archive path based on its
// extension. Unknown extensions map to Default.
func ForPath(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return Default
	}
	if t, ok := extensionToType[ext]; ok {
		return t
	}
	return Default
}

// IsMarkup reports whether mimeType is an HTML document type.
func IsMarkup(mimeType string) bool {
	return mimeType == HTML || mimeType == "application/xhtml+xml"
}

// IsStylesheet reports whether mimeType is CSS.
func IsStylesheet(mimeType string) bool {
	return mimeType == CSS
}

// WithCharset appends a UTF-8 charset parameter to textual types so browsers
// decode rewritten documents consistently.
func WithCharset(mimeType string) string {
	if strings.HasPrefix(mimeType, "text/") || mimeType == "application/json" || mimeType == "image/svg+xml" {
		return mimeType + "; charset=utf-8"
	}
	return mimeType
}
