// Package intercept redirects references created at runtime by archived
// content to content identifiers.
//
// A Layer is installed per document context. It never fails a request:
// references it cannot resolve pass through unchanged.
package intercept

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/zipsite/internal/dom"
	"github.com/ziadkadry99/zipsite/internal/nav"
	"github.com/ziadkadry99/zipsite/internal/rewrite"
	"github.com/ziadkadry99/zipsite/internal/vfs"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// DefaultDelay is how long observed mutations wait before reconciliation.
const DefaultDelay = 16 * time.Millisecond

// Host is the enclosing context's capability: the live table and the shared
// path context.
type Host interface {
	Lookup(key string) (*vfs.Record, bool)
	Paths() *vfs.PathContext
}

// srcTags are the elements whose src property is a resource reference.
var srcTags = map[string]bool{
	"img": true, "video": true, "audio": true, "source": true, "track": true,
	"script": true, "iframe": true, "frame": true, "embed": true, "input": true,
}

// Resolver maps references to identifiers against the current path.
type Resolver struct {
	paths  *vfs.PathContext
	assets map[string]string
	table  nav.Table
}

// NewResolver creates a Resolver. assets is the bootstrap map; table, when
// non-nil, supplies markup records.
func NewResolver(paths *vfs.PathContext, assets map[string]string, table nav.Table) *Resolver {
	return &Resolver{paths: paths, assets: assets, table: table}
}

// Resolve returns the identifier for ref plus its suffix. On a miss it
// returns ref unchanged and false.
func (r *Resolver) Resolve(ref string) (string, bool) {
	return r.resolve(ref, true)
}

func (r *Resolver) resolve(ref string, allowMarkup bool) (string, bool) {
	key, suffix, ok := vpath.Resolve(r.paths.Path(), strings.TrimSpace(ref))
	if !ok {
		return ref, false
	}
	if id, ok := r.assets[key]; ok {
		return id + suffix, true
	}
	if r.table == nil {
		return ref, false
	}
	rec, ok := r.table.Lookup(key)
	if !ok || (rec.IsMarkup() && !allowMarkup) {
		return ref, false
	}
	return string(rec.ID) + suffix, true
}

// Primitives are the resource-loading operations handed to content.
type Primitives struct {
	Fetch  func(ctx context.Context, url string) (*http.Response, error)
	NewURL func(ref, base string) (*url.URL, error)
	Open   func(method, url string) error
}

type pending struct {
	el   *dom.Element
	attr string
}

// Layer is the interception layer of one document context.
type Layer struct {
	doc      *dom.Document
	paths    *vfs.PathContext
	resolver *Resolver
	nav      *nav.Coordinator
	delay    time.Duration

	mu    sync.Mutex
	queue []pending
	timer *time.Timer
}

// Option configures Install.
type Option func(*Layer)

// WithDelay sets the reconciliation delay.
func WithDelay(d time.Duration) Option {
	return func(l *Layer) { l.delay = d }
}

// WithNavigator installs a navigation coordinator that sends claimed clicks
// to n.
func WithNavigator(n nav.Navigator) Option {
	return func(l *Layer) { l.nav = nav.New(l.paths, l.navTable(), n) }
}

// Install creates the layer for doc. It inherits host's path context when
// host holds one and falls back to boot.DefaultBasePath otherwise. The layer
// observes doc from then on.
func Install(doc *dom.Document, boot rewrite.Bootstrap, host Host, opts ...Option) *Layer {
	l := &Layer{doc: doc, delay: DefaultDelay, paths: nav.Inherit(host, boot.DefaultBasePath)}
	var table nav.Table
	if host != nil {
		table = host
	}
	l.resolver = NewResolver(l.paths, boot.PathToIdentifier, table)
	for _, opt := range opts {
		opt(l)
	}
	if doc != nil {
		doc.Observe(func(m dom.Mutation) { l.Observe(m) })
	}
	return l
}

func (l *Layer) navTable() nav.Table {
	if l.resolver != nil && l.resolver.table != nil {
		return l.resolver.table
	}
	return emptyTable{}
}

type emptyTable struct{}

func (emptyTable) Lookup(string) (*vfs.Record, bool) { return nil, false }

// Paths returns the path context the layer resolves against.
func (l *Layer) Paths() *vfs.PathContext { return l.paths }

// Resolver returns the layer's resolver.
func (l *Layer) Resolver() *Resolver { return l.resolver }

// Wrap returns primitives that resolve their reference argument first.
// NewURL only resolves when base is empty or itself in memory.
func (l *Layer) Wrap(p Primitives) Primitives {
	var out Primitives
	if p.Fetch != nil {
		out.Fetch = func(ctx context.Context, ref string) (*http.Response, error) {
			ref, _ = l.resolver.Resolve(ref)
			return p.Fetch(ctx, ref)
		}
	}
	if p.NewURL != nil {
		out.NewURL = func(ref, base string) (*url.URL, error) {
			if inMemoryBase(base) {
				if resolved, ok := l.resolver.Resolve(ref); ok {
					return p.NewURL(resolved, base)
				}
			}
			return p.NewURL(ref, base)
		}
	}
	if p.Open != nil {
		out.Open = func(method, ref string) error {
			ref, _ = l.resolver.Resolve(ref)
			return p.Open(method, ref)
		}
	}
	return out
}

func inMemoryBase(base string) bool {
	if base == "" || vpath.IsContentID(base) {
		return true
	}
	u, err := url.Parse(base)
	return err == nil && vpath.IsContentID(u.Path)
}

// SetProperty assigns a property on el. src on resource elements is
// resolved first; everything else is stored as given.
func (l *Layer) SetProperty(el *dom.Element, name, value string) {
	if strings.EqualFold(name, "src") && srcTags[el.Tag()] {
		value, _ = l.resolver.Resolve(value)
	}
	el.SetAttr(name, value)
}

// Click dispatches ev to the navigation coordinator, if one is installed.
func (l *Layer) Click(ev *dom.ClickEvent) bool {
	if l.nav == nil {
		return false
	}
	return l.nav.HandleClick(ev)
}

// Observe queues src and href values touched by ms for reconciliation.
func (l *Layer) Observe(ms ...dom.Mutation) {
	var add []pending
	for _, m := range ms {
		switch m.Kind {
		case dom.AttributeChanged:
			if m.Attribute == "src" || m.Attribute == "href" {
				add = appendPending(add, m.Target, m.Attribute)
			}
		case dom.SubtreeAdded:
			m.Target.Walk(func(el *dom.Element) bool {
				add = appendPending(add, el, "src")
				add = appendPending(add, el, "href")
				return true
			})
		}
	}
	if len(add) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, add...)
	if l.timer == nil {
		l.timer = time.AfterFunc(l.delay, l.Flush)
	}
}

func appendPending(list []pending, el *dom.Element, attr string) []pending {
	v, ok := el.Attr(attr)
	if !ok || v == "" || vpath.IsContentID(v) {
		return list
	}
	return append(list, pending{el: el, attr: attr})
}

// Flush reconciles every queued reference now, in the order queued.
func (l *Layer) Flush() {
	l.mu.Lock()
	items := l.queue
	l.queue = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	for _, p := range items {
		v, ok := p.el.Attr(p.attr)
		if !ok || vpath.IsContentID(v) {
			continue
		}
		allowMarkup := p.attr != "href" || !isAnchor(p.el)
		if next, ok := l.resolver.resolve(v, allowMarkup); ok {
			p.el.SetAttr(p.attr, next)
		}
	}
}

// Pending returns the number of queued references.
func (l *Layer) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops any scheduled reconciliation.
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.queue = nil
}

func isAnchor(el *dom.Element) bool {
	t := el.Tag()
	return t == "a" || t == "area"
}
