// Package nav turns clicks on anchors that point at archived documents into
// virtual navigation.
package nav

import (
	"log"
	"strings"

	"github.com/ziadkadry99/zipsite/internal/dom"
	"github.com/ziadkadry99/zipsite/internal/vfs"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// Table is the live, shared view of the session's records.
type Table interface {
	Lookup(key string) (*vfs.Record, bool)
}

// Host is the capability an enclosing context hands to the documents it
// loads: the live table plus the shared path context.
type Host interface {
	Table
	Paths() *vfs.PathContext
}

// Navigator loads a target into the document context.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate calls f(target).
func (f NavigatorFunc) Navigate(target string) { f(target) }

// Inherit returns the host's path context when it holds one, else a fresh
// context starting at def.
func Inherit(host Host, def string) *vfs.PathContext {
	if host != nil {
		if pc := host.Paths(); pc != nil && pc.Path() != "" {
			return pc
		}
	}
	return vfs.NewPathContext(def)
}

// Coordinator claims anchor clicks that resolve to markup records.
type Coordinator struct {
	paths     *vfs.PathContext
	table     Table
	navigator Navigator
}

// New creates a Coordinator.
func New(paths *vfs.PathContext, table Table, navigator Navigator) *Coordinator {
	return &Coordinator{paths: paths, table: table, navigator: navigator}
}

var nonNavigational = []string{"#", "javascript:", "mailto:", "tel:"}

// HandleClick inspects ev and reports whether it was claimed. A claimed
// click has its default prevented, the path context moved to the target,
// and the navigator sent to the target's identifier.
func (c *Coordinator) HandleClick(ev *dom.ClickEvent) bool {
	if ev == nil || ev.Button != 0 || ev.DefaultPrevented() || ev.Target == nil {
		return false
	}
	anchor := ev.Target.Closest("a", "area")
	if anchor == nil {
		return false
	}
	href, _ := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || vpath.IsExternal(href) {
		return false
	}
	lower := strings.ToLower(href)
	for _, p := range nonNavigational {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}

	key, suffix, ok := vpath.Resolve(c.paths.Path(), href)
	if !ok {
		return false
	}
	rec, ok := c.table.Lookup(key)
	if !ok || !rec.IsMarkup() {
		return false
	}

	ev.PreventDefault()
	c.paths.Set(key)
	log.Printf("nav: %s -> %s", href, key)
	c.navigator.Navigate(string(rec.ID) + suffix)
	return true
}
