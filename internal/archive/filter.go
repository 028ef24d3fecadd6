package archive

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes drop the metadata macOS and editors leave in archives.
var DefaultExcludes = []string{
	"__MACOSX/**",
	"**/.DS_Store",
	".DS_Store",
	"**/Thumbs.db",
}

// Filter selects which archive paths enter the virtual file table.
type Filter struct {
	Include []string
	Exclude []string
}

// Allows reports whether p passes the include and exclude patterns.
// An empty include list admits everything.
func (f Filter) Allows(p string) bool {
	if len(f.Include) > 0 && !matchesAny(p, f.Include) {
		return false
	}
	return !matchesAny(p, f.Exclude)
}

// matchesAny checks p and its base name against each glob pattern.
// It uses doublestar for ** support.
func matchesAny(p string, patterns []string) bool {
	normalized := strings.TrimPrefix(p, "/")
	base := path.Base(normalized)

	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
