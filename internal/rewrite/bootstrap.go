package rewrite

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	bootOpen  = "<!--zipsite:bootstrap-->"
	bootClose = "<!--/zipsite:bootstrap-->"
)

// Bootstrap is the data a rewritten document carries for its runtime layer.
type Bootstrap struct {
	// PathToIdentifier maps every non-markup path to its identifier.
	PathToIdentifier map[string]string `json:"pathToIdentifier"`
	// DefaultBasePath is used when no enclosing context supplies one.
	DefaultBasePath string `json:"defaultBasePath"`
}

// Script renders the bootstrap block: the JSON payload followed by the
// runtime. encoding/json escapes '<', so the payload cannot close the tag.
func (b Bootstrap) Script(delayMillis int) string {
	if b.PathToIdentifier == nil {
		b.PathToIdentifier = map[string]string{}
	}
	payload, _ := json.Marshal(b)

	var sb strings.Builder
	sb.WriteString(bootOpen)
	sb.WriteString("<script>window.__zipsiteBoot=")
	sb.Write(payload)
	sb.WriteString(";</script><script>")
	sb.WriteString(Runtime(delayMillis))
	sb.WriteString("</script>")
	sb.WriteString(bootClose)
	return sb.String()
}

// InjectBootstrap places the bootstrap block right after the opening head
// tag, or at the very start when the document has none.
func InjectBootstrap(doc string, b Bootstrap, delayMillis int) string {
	block := b.Script(delayMillis)
	if loc := headPattern.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + block + doc[loc[1]:]
	}
	return block + doc
}

// StripBootstrap removes a previously injected bootstrap block.
func StripBootstrap(doc string) string {
	start := strings.Index(doc, bootOpen)
	if start < 0 {
		return doc
	}
	end := strings.Index(doc[start:], bootClose)
	if end < 0 {
		return doc
	}
	return doc[:start] + doc[start+end+len(bootClose):]
}

// ParseBootstrap extracts the payload of an injected block.
func ParseBootstrap(doc string) (Bootstrap, bool) {
	var b Bootstrap
	const marker = "window.__zipsiteBoot="
	start := strings.Index(doc, bootOpen)
	if start < 0 {
		return b, false
	}
	rest := doc[start:]
	i := strings.Index(rest, marker)
	if i < 0 {
		return b, false
	}
	rest = rest[i+len(marker):]
	j := strings.Index(rest, ";</script>")
	if j < 0 {
		return b, false
	}
	if err := json.Unmarshal([]byte(rest[:j]), &b); err != nil {
		return b, false
	}
	return b, true
}

func runtimeDelay(ms int) string {
	if ms < 0 {
		ms = 0
	}
	return strconv.Itoa(ms)
}
