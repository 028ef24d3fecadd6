// Package session runs the lifecycle of a loaded archive: extraction into a
// virtual file table, content rewriting, serving, and release.
//
// At most one session is outside Empty at a time. Every identifier a
// session allocates is released when it fails, is aborted or is reset.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/dom"
	"github.com/ziadkadry99/zipsite/internal/history"
	"github.com/ziadkadry99/zipsite/internal/intercept"
	"github.com/ziadkadry99/zipsite/internal/rewrite"
	"github.com/ziadkadry99/zipsite/internal/vfs"
)

// State is a session lifecycle state.
type State int

const (
	Empty State = iota
	Extracting
	Rewriting
	Ready
)

func (s State) String() string {
	switch s {
	case Extracting:
		return "extracting"
	case Rewriting:
		return "rewriting"
	case Ready:
		return "ready"
	default:
		return "empty"
	}
}

// extractShare is the part of the progress range spent extracting.
const extractShare = 0.9

// Session is one loaded archive.
type Session struct {
	ID      string
	Source  string
	Started time.Time

	scope  *blob.Scope
	paths  *vfs.PathContext
	handle *Handle

	mu    sync.RWMutex
	state State
	table *vfs.Table
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.handle.setState(st)
}

// Table returns the virtual file table, or nil unless the session is Ready.
func (s *Session) Table() *vfs.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Ready {
		return nil
	}
	return s.table
}

// Lookup finds a record in the live table. It misses unless the session is
// Ready.
func (s *Session) Lookup(key string) (*vfs.Record, bool) {
	t := s.Table()
	if t == nil {
		return nil, false
	}
	return t.Lookup(key)
}

// Paths returns the session's shared path context.
func (s *Session) Paths() *vfs.PathContext { return s.paths }

// Handle returns the lifecycle handle.
func (s *Session) Handle() *Handle { return s.handle }

// Entry returns the entry document record.
func (s *Session) Entry() (*vfs.Record, bool) {
	t := s.Table()
	if t == nil {
		return nil, false
	}
	return t.Entry()
}

// Stats reports identifier accounting for the session.
func (s *Session) Stats() (allocated, released, live int) {
	return s.scope.Stats()
}

// Bootstrap returns the bootstrap payload for the document at path.
func (s *Session) Bootstrap(path string) rewrite.Bootstrap {
	b := rewrite.Bootstrap{DefaultBasePath: path}
	if t := s.Table(); t != nil {
		b.PathToIdentifier = t.IdentifierMap(true)
	}
	return b
}

// Open installs an interception layer for the document at path, sharing
// the session's path context.
func (s *Session) Open(doc *dom.Document, path string, opts ...intercept.Option) *intercept.Layer {
	return intercept.Install(doc, s.Bootstrap(path), s, opts...)
}

// Recorder persists lifecycle history.
type Recorder interface {
	Log(ctx context.Context, entry history.Entry) error
}

// Options configure how archives are loaded.
type Options struct {
	Filter         archive.Filter
	DecodeErrors   vfs.DecodePolicy
	MaxEntryBytes  int64
	ReconcileDelay time.Duration
	Recorder       Recorder
}

// Manager owns the single active session.
type Manager struct {
	store *blob.Store
	opts  Options

	// loadMu serializes Load and Reset.
	loadMu sync.Mutex

	mu      sync.RWMutex
	current *Session
	subs    []func(Event)
}

// NewManager creates a Manager allocating from store.
func NewManager(store *blob.Store, opts Options) *Manager {
	return &Manager{store: store, opts: opts}
}

// Store returns the blob store sessions allocate from.
func (m *Manager) Store() *blob.Store { return m.store }

// Subscribe registers fn for the events of every later session.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Current returns the session outside Empty, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// State returns the state of the current session, or Empty.
func (m *Manager) State() State {
	if s := m.Current(); s != nil {
		return s.State()
	}
	return Empty
}

// Load resets any existing session and loads src into a new one. On error
// every identifier of the attempt is released and the manager is Empty.
func (m *Manager) Load(ctx context.Context, src archive.Source) (*Session, error) {
	m.Abort()
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.resetLocked()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &Session{
		ID:      uuid.New().String(),
		Source:  src.Name(),
		Started: time.Now(),
		paths:   vfs.NewPathContext(""),
		state:   Extracting,
	}
	s.scope = m.store.NewScope(s.ID)
	s.handle = newHandle(s.ID, s.Source, cancel)

	m.mu.Lock()
	for _, fn := range m.subs {
		s.handle.Subscribe(fn)
	}
	m.current = s
	m.mu.Unlock()

	log.Printf("session: %s loading %s", s.ID, s.Source)
	s.handle.Begin()
	m.record(s, history.EventBegin, 0, nil)

	if err := m.run(ctx, s, src); err != nil {
		released := s.scope.ReleaseAll()
		s.setState(Empty)
		m.mu.Lock()
		if m.current == s {
			m.current = nil
		}
		m.mu.Unlock()

		s.handle.Fail(err)
		event := history.EventFailed
		if errors.Is(err, context.Canceled) {
			event = history.EventAborted
		}
		m.record(s, event, released, err)
		log.Printf("session: %s %s: %v", s.ID, event, err)
		return nil, err
	}

	s.handle.Complete()
	m.record(s, history.EventReady, 0, nil)
	log.Printf("session: %s ready with %d resources, entry %s", s.ID, s.table.Len(), s.table.EntryPath)
	return s, nil
}

func (m *Manager) run(ctx context.Context, s *Session, src archive.Source) error {
	entries, err := src.Entries(ctx)
	if err != nil {
		return err
	}

	table, err := vfs.Build(ctx, entries, s.scope, vfs.BuildOptions{
		Name:          src.Name(),
		Filter:        m.opts.Filter,
		DecodeErrors:  m.opts.DecodeErrors,
		MaxEntryBytes: m.opts.MaxEntryBytes,
		Progress:      func(f float64) { s.handle.Progress(f * extractShare) },
	})
	if err != nil {
		return err
	}

	s.setState(Rewriting)
	delay := m.opts.ReconcileDelay
	if delay <= 0 {
		delay = intercept.DefaultDelay
	}
	rw := rewrite.New(table, s.scope, int(delay/time.Millisecond))
	if err := rw.RewriteAll(ctx, func(f float64) {
		s.handle.Progress(extractShare + f*(1-extractShare))
	}); err != nil {
		return err
	}

	s.paths.Set(table.EntryPath)
	s.mu.Lock()
	s.table = table
	s.state = Ready
	s.mu.Unlock()
	s.handle.setState(Ready)
	return nil
}

// Abort cancels an in-flight load. It reports whether one was running.
func (m *Manager) Abort() bool {
	s := m.Current()
	if s == nil {
		return false
	}
	switch s.State() {
	case Extracting, Rewriting:
		s.handle.Abort()
		return true
	}
	return false
}

// Reset aborts any in-flight load, releases every identifier of the current
// session and returns to Empty. It returns how many identifiers it released.
func (m *Manager) Reset() int {
	m.Abort()
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.resetLocked()
}

func (m *Manager) resetLocked() int {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()
	if s == nil {
		return 0
	}

	n := s.scope.ReleaseAll()
	s.setState(Empty)
	s.handle.reset()
	m.record(s, history.EventReset, n, nil)
	log.Printf("session: %s reset", s.ID)
	return n
}

func (m *Manager) record(s *Session, event history.Event, released int, err error) {
	if m.opts.Recorder == nil {
		return
	}
	entry := history.Entry{
		SessionID: s.ID,
		Event:     event,
		Source:    s.Source,
		Released:  released,
	}
	if t := s.Table(); t != nil {
		entry.EntryPath = t.EntryPath
		entry.Prefix = t.Prefix
		entry.Resources = t.Len()
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if logErr := m.opts.Recorder.Log(context.Background(), entry); logErr != nil {
		log.Printf("session: recording %s: %v", event, logErr)
	}
}
