package rewrite

import (
	"regexp"
	"strings"
)

var (
	// cssURLPattern matches url(...) with double, single or no quotes.
	cssURLPattern = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^'"\s)]+))\s*\)`)

	// cssImportPattern matches @import with a bare quoted string. The
	// url(...) form is covered by cssURLPattern.
	cssImportPattern = regexp.MustCompile(`(?i)(@import\s+)(?:"([^"]*)"|'([^']*)')`)

	// attrPattern matches src= and href= attributes. The leading whitespace
	// keeps data-src and similar attributes out.
	attrPattern = regexp.MustCompile(`(?i)(\s(src|href)\s*=\s*)(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)

	// modulePattern matches static (from "x", import "x") and dynamic
	// (import("x")) module specifiers.
	modulePattern = regexp.MustCompile(`(\bfrom\s*|\bimport\s*\(\s*|\bimport\s+)(?:"([^"]*)"|'([^']*)')`)

	// headPattern matches the opening head tag but not <header>.
	headPattern = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
)

// quoted is one match of a pattern whose value alternates between a
// double-quoted, single-quoted and (optionally) bare group.
type quoted struct {
	lead  string
	quote string
	value string
}

func (q quoted) String(value string) string {
	return q.lead + q.quote + value + q.quote
}

// replaceQuoted rewrites every match of re in src. lead is the submatch
// index of text kept verbatim before the value (0 for none) and first is the
// submatch index of the double-quoted alternative; the single-quoted and
// bare alternatives follow it. fn returns the replacement value and whether
// to replace at all.
func replaceQuoted(re *regexp.Regexp, src string, lead, first int, fn func(q quoted, m []string) (string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, m := range matches {
		b.WriteString(src[last:m[0]])
		last = m[1]

		sub := make([]string, len(m)/2)
		for i := range sub {
			if m[2*i] >= 0 {
				sub[i] = src[m[2*i]:m[2*i+1]]
			}
		}

		q := quoted{}
		if lead > 0 {
			q.lead = sub[lead]
		}
		switch {
		case m[2*first] >= 0:
			q.quote, q.value = `"`, sub[first]
		case first+1 < len(sub) && m[2*(first+1)] >= 0:
			q.quote, q.value = `'`, sub[first+1]
		case first+2 < len(sub) && m[2*(first+2)] >= 0:
			q.value = sub[first+2]
		}

		replacement, ok := fn(q, sub)
		if !ok {
			b.WriteString(src[m[0]:m[1]])
			continue
		}
		b.WriteString(replacement)
	}
	b.WriteString(src[last:])
	return b.String()
}
