package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/intercept"
	"github.com/ziadkadry99/zipsite/internal/session"
	"github.com/ziadkadry99/zipsite/internal/vfs"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

const noSession = "No archive is loaded. Call load_archive first."

// handleLoadArchive loads a local file or remote URL into a new session.
func (s *Server) handleLoadArchive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: source"), nil
	}

	var src archive.Source
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		src = archive.Remote(s.client, source, s.opts.MaxArchiveBytes)
	} else {
		src, err = archive.FromFile(source, s.opts.MaxArchiveBytes)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open archive: %v", err)), nil
		}
	}

	sess, err := s.manager.Load(ctx, src)
	if err != nil {
		msg := fmt.Sprintf("failed to load %s: %v", source, err)
		var coe *archive.CrossOriginError
		if errors.As(err, &coe) {
			msg += "\n\n" + coe.Guidance
		}
		return mcp.NewToolResultError(msg), nil
	}
	return mcp.NewToolResultText(formatStatus(sess)), nil
}

// handleSessionStatus describes the current session.
func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := s.manager.Current()
	if sess == nil {
		return mcp.NewToolResultText("State: empty\n" + noSession), nil
	}
	return mcp.NewToolResultText(formatStatus(sess)), nil
}

// handleListResources lists table records, optionally filtered by a glob.
func (s *Server) handleListResources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := s.readyTable()
	if table == nil {
		return mcp.NewToolResultError(noSession), nil
	}

	pattern := request.GetString("pattern", "")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pattern %q", pattern)), nil
	}
	limit := request.GetInt("limit", 200)
	if limit <= 0 {
		limit = 200
	}

	var matched []*vfs.Record
	for _, rec := range table.Records() {
		if pattern != "" {
			if ok, _ := doublestar.Match(pattern, rec.Path); !ok {
				continue
			}
		}
		matched = append(matched, rec)
	}
	if len(matched) == 0 {
		return mcp.NewToolResultText("No resources match."), nil
	}
	return mcp.NewToolResultText(formatResources(matched, limit)), nil
}

// handleResolveReference resolves ref against base or the current path.
func (s *Server) handleResolveReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ref"), nil
	}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		return mcp.NewToolResultError(noSession), nil
	}

	paths := sess.Paths()
	if base := request.GetString("base", ""); base != "" {
		key, _ := vpath.Normalize("", base)
		paths = vfs.NewPathContext(key)
	}
	resolved, ok := intercept.NewResolver(paths, nil, sess).Resolve(ref)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("%s does not resolve against %s; it is left unchanged.", ref, paths.Path())), nil
	}

	key, _, _ := vpath.Resolve(paths.Path(), ref)
	return mcp.NewToolResultText(fmt.Sprintf("%s -> %s (archive path %s, base %s)", ref, resolved, key, paths.Path())), nil
}

// handleReadResource returns the served payload of an archive path.
func (s *Server) handleReadResource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		return mcp.NewToolResultError(noSession), nil
	}

	key, _ := vpath.Normalize("", path)
	rec, ok := sess.Lookup(key)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not in the archive", key)), nil
	}
	data, mimeType, err := s.manager.Store().Get(rec.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", key, err)), nil
	}

	if !isText(mimeType, data) {
		return mcp.NewToolResultText(fmt.Sprintf("%s is binary (%s, %d bytes, served at %s)", key, mimeType, len(data), rec.ID)), nil
	}
	return mcp.NewToolResultText(truncate(string(data), request.GetInt("max_bytes", 64<<10))), nil
}

// handleFollowLink clicks an anchor in the current document.
func (s *Server) handleFollowLink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	href, err := request.RequireString("href")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: href"), nil
	}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		return mcp.NewToolResultError(noSession), nil
	}

	from := sess.Paths().Path()
	target, ok := sess.Follow(href)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("%s from %s is not an archived document; the browser handles it and the path context stays at %s", href, from, from)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Navigated from %s to %s (%s)", from, sess.Paths().Path(), target)), nil
}

// handleFetchReference reads a reference the way a fetch from the current
// document would.
func (s *Server) handleFetchReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ref"), nil
	}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		return mcp.NewToolResultError(noSession), nil
	}

	data, mimeType, err := sess.Fetch(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch from %s failed: %v", sess.Paths().Path(), err)), nil
	}
	if !isText(mimeType, data) {
		return mcp.NewToolResultText(fmt.Sprintf("%s is binary (%s, %d bytes)", ref, mimeType, len(data))), nil
	}
	return mcp.NewToolResultText(truncate(string(data), request.GetInt("max_bytes", 64<<10))), nil
}

// truncate cuts text to at most maxBytes on a rune boundary and notes the
// cut. maxBytes <= 0 disables truncation.
func truncate(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + fmt.Sprintf("\n... truncated, %d of %d bytes shown", cut, len(text))
}

func (s *Server) readyTable() *vfs.Table {
	sess := s.manager.Current()
	if sess == nil {
		return nil
	}
	return sess.Table()
}

func isText(mimeType string, data []byte) bool {
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		strings.Contains(mimeType, "json"),
		strings.Contains(mimeType, "javascript"),
		strings.Contains(mimeType, "xml"):
		return utf8.Valid(data)
	}
	return false
}

func formatStatus(sess *session.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("State: %s\n", sess.State()))
	sb.WriteString(fmt.Sprintf("Session: %s\n", sess.ID))
	sb.WriteString(fmt.Sprintf("Source: %s\n", sess.Source))
	sb.WriteString(fmt.Sprintf("Progress: %.0f%%\n", sess.Handle().Value()*100))

	if t := sess.Table(); t != nil {
		entry, _ := t.Entry()
		sb.WriteString(fmt.Sprintf("Entry document: %s (%s)\n", t.EntryPath, entry.ID))
		if t.Prefix != "" {
			sb.WriteString(fmt.Sprintf("Stripped prefix: %s\n", t.Prefix))
		}
		sb.WriteString(fmt.Sprintf("Resources: %d\n", t.Len()))
		sb.WriteString(fmt.Sprintf("Current path: %s\n", sess.Paths().Path()))
	}
	allocated, released, live := sess.Stats()
	sb.WriteString(fmt.Sprintf("Identifiers: %d allocated, %d released, %d live\n", allocated, released, live))
	return sb.String()
}

// formatResources renders at most limit records as a compact listing.
func formatResources(recs []*vfs.Record, limit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d resource(s):\n", len(recs)))
	for i, rec := range recs {
		if i == limit {
			sb.WriteString(fmt.Sprintf("... %d more\n", len(recs)-limit))
			break
		}
		sb.WriteString(fmt.Sprintf("%s\t%s\t%d bytes\t%s\n", rec.Path, rec.MIMEType, rec.Size, rec.ID))
	}
	return sb.String()
}
