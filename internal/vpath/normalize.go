// Package vpath resolves references found in archived web content against
// the path of the document that contains them.
package vpath

import (
	"regexp"
	"strings"
)

// ContentIDPrefix marks references that already point at an in-memory
// resource. Such references are never resolved again.
const ContentIDPrefix = "/~zipsite/"

// schemePattern matches absolute URLs such as https://host/x or file:///x.
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// IsContentID reports whether ref was issued by the blob store.
func IsContentID(ref string) bool {
	return strings.HasPrefix(ref, ContentIDPrefix)
}

// IsExternal reports whether ref must be left untouched by every resolver:
// absolute URLs, protocol-relative URLs, data: and blob: URLs and content IDs.
func IsExternal(ref string) bool {
	if IsContentID(ref) {
		return true
	}
	if strings.HasPrefix(ref, "//") {
		return true
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return true
	}
	return schemePattern.MatchString(ref)
}

// Normalize resolves ref against base and returns the archive-root-relative
// table key. ok is false when ref is external and must not be rewritten.
//
// Query strings and fragments are not handled here; use SplitSuffix first.
func Normalize(base, ref string) (key string, ok bool) {
	if IsExternal(ref) {
		return "", false
	}
	if strings.HasPrefix(ref, "/") {
		return clean(strings.TrimPrefix(ref, "/")), true
	}

	joined := ref
	if dir := Dir(base); dir != "" {
		joined = dir + "/" + ref
	}
	return clean(joined), true
}

// Dir returns the directory portion of p (text before the last slash).
func Dir(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

// clean drops empty and "." segments and resolves ".." against the segments
// accepted so far. Popping past the root is silently absorbed.
func clean(p string) string {
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// SplitSuffix splits ref at the first '?' or '#'. The suffix keeps its
// leading separator so callers can re-append it verbatim.
func SplitSuffix(ref string) (p, suffix string) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}

// Resolve is Normalize with the suffix stripped before and returned after.
func Resolve(base, ref string) (key, suffix string, ok bool) {
	p, suffix := SplitSuffix(ref)
	if p == "" {
		return "", suffix, false
	}
	key, ok = Normalize(base, p)
	return key, suffix, ok
}
