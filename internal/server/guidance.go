package server

import (
	"bytes"
	"html"
	"log"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// markdown renders user-facing guidance. Raw HTML in the source is escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// renderGuidance converts guidance markdown to HTML.
func renderGuidance(md string) string {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		log.Printf("server: rendering guidance: %v", err)
		return "<pre>" + html.EscapeString(md) + "</pre>"
	}
	return buf.String()
}
