// Package dom is a minimal document tree: just enough structure for the
// interception layer and navigation coordinator to observe attribute changes,
// attached subtrees and clicks.
package dom

import (
	"strings"
	"sync"
)

// Element is one node of a document tree. Tag names are stored lowercase.
type Element struct {
	mu       sync.RWMutex
	tag      string
	attrs    map[string]string
	parent   *Element
	children []*Element
	doc      *Document
}

// NewElement creates a detached element.
func NewElement(tag string, attrs map[string]string) *Element {
	el := &Element{tag: strings.ToLower(tag), attrs: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		el.attrs[strings.ToLower(k)] = v
	}
	return el
}

// Tag returns the lowercase tag name.
func (e *Element) Tag() string { return e.tag }

// Attr returns the value of name.
func (e *Element) Attr(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.attrs[strings.ToLower(name)]
	return v, ok
}

// SetAttr sets name and notifies the owning document's observers.
func (e *Element) SetAttr(name, value string) {
	name = strings.ToLower(name)
	e.mu.Lock()
	old, had := e.attrs[name]
	e.attrs[name] = value
	doc := e.doc
	e.mu.Unlock()

	if doc != nil && (!had || old != value) {
		doc.notify(Mutation{Kind: AttributeChanged, Target: e, Attribute: name})
	}
}

// Parent returns the enclosing element, or nil.
func (e *Element) Parent() *Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.parent
}

// Children returns a copy of the child list.
func (e *Element) Children() []*Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Append attaches child under e. If e belongs to a document the whole
// subtree joins it and observers see one SubtreeAdded mutation.
func (e *Element) Append(child *Element) *Element {
	e.mu.Lock()
	child.mu.Lock()
	child.parent = e
	child.mu.Unlock()
	e.children = append(e.children, child)
	doc := e.doc
	e.mu.Unlock()

	if doc != nil {
		child.Walk(func(n *Element) bool {
			n.mu.Lock()
			n.doc = doc
			n.mu.Unlock()
			return true
		})
		doc.notify(Mutation{Kind: SubtreeAdded, Target: child})
	}
	return child
}

// Walk visits e and its descendants depth first until fn returns false.
func (e *Element) Walk(fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children() {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Closest returns the nearest of e and its ancestors whose tag is one of
// tags.
func (e *Element) Closest(tags ...string) *Element {
	for n := e; n != nil; n = n.Parent() {
		for _, t := range tags {
			if n.tag == t {
				return n
			}
		}
	}
	return nil
}

// MutationKind distinguishes observed tree changes.
type MutationKind int

const (
	// AttributeChanged reports a new or changed attribute value.
	AttributeChanged MutationKind = iota
	// SubtreeAdded reports an element attached with all its descendants.
	SubtreeAdded
)

// Mutation is one observed change.
type Mutation struct {
	Kind      MutationKind
	Target    *Element
	Attribute string
}

// Document owns a root element and the observers of its tree.
type Document struct {
	root *Element

	mu        sync.Mutex
	observers []func(Mutation)
}

// NewDocument creates a document with an html root element.
func NewDocument() *Document {
	d := &Document{}
	d.root = NewElement("html", nil)
	d.root.doc = d
	return d
}

// Root returns the document element.
func (d *Document) Root() *Element { return d.root }

// Observe registers fn for every later mutation.
func (d *Document) Observe(fn func(Mutation)) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

func (d *Document) notify(m Mutation) {
	d.mu.Lock()
	obs := make([]func(Mutation), len(d.observers))
	copy(obs, d.observers)
	d.mu.Unlock()
	for _, fn := range obs {
		fn(m)
	}
}

// ClickEvent is a click dispatched at Target.
type ClickEvent struct {
	Target *Element
	// Button is 0 for the primary button.
	Button int

	prevented bool
}

// PreventDefault cancels the default navigation.
func (c *ClickEvent) PreventDefault() { c.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (c *ClickEvent) DefaultPrevented() bool { return c.prevented }
