// Package blob manages the in-memory payloads behind content identifiers.
//
// Every identifier is allocated through a Scope, which belongs to exactly one
// session. Releasing a scope releases every identifier it still holds, and a
// released identifier can never be dereferenced again.
package blob

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// Prefix is the path under which content identifiers are served.
const Prefix = vpath.ContentIDPrefix + "blob/"

var (
	// ErrNotFound is returned for identifiers this store never issued.
	ErrNotFound = errors.New("blob: unknown identifier")
	// ErrReleased is returned for identifiers that were released.
	ErrReleased = errors.New("blob: identifier released")
	// ErrPending is returned for reserved identifiers not yet filled.
	ErrPending = errors.New("blob: identifier reserved but not filled")
)

// ID is an opaque content identifier. It doubles as the URL path the HTTP
// host serves the payload from.
type ID string

// Token returns the uuid part of the identifier.
func (id ID) Token() string {
	return strings.TrimPrefix(string(id), Prefix)
}

// FromToken rebuilds an identifier from its uuid part.
func FromToken(token string) ID {
	return ID(Prefix + token)
}

type entry struct {
	data     []byte
	mimeType string
	filled   bool
}

// Store holds payloads for all live identifiers in the process.
type Store struct {
	mu       sync.RWMutex
	blobs    map[ID]*entry
	released map[ID]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		blobs:    make(map[ID]*entry),
		released: make(map[ID]struct{}),
	}
}

// Get dereferences id.
func (s *Store) Get(id ID) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.blobs[id]
	if !ok {
		if _, gone := s.released[id]; gone {
			return nil, "", ErrReleased
		}
		return nil, "", ErrNotFound
	}
	if !e.filled {
		return nil, "", ErrPending
	}
	return e.data, e.mimeType, nil
}

// Live returns the number of identifiers currently allocated.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// NewScope opens an allocation scope for one session.
func (s *Store) NewScope(owner string) *Scope {
	return &Scope{store: s, owner: owner, live: make(map[ID]struct{})}
}

func (s *Store) put(id ID, e *entry) {
	s.mu.Lock()
	s.blobs[id] = e
	s.mu.Unlock()
}

func (s *Store) fill(id ID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.blobs[id]
	if !ok {
		if _, gone := s.released[id]; gone {
			return ErrReleased
		}
		return ErrNotFound
	}
	e.data = data
	e.filled = true
	return nil
}

func (s *Store) drop(id ID) {
	s.mu.Lock()
	delete(s.blobs, id)
	s.released[id] = struct{}{}
	s.mu.Unlock()
}

// Scope tracks the identifiers allocated for one session.
type Scope struct {
	store *Store
	owner string

	mu        sync.Mutex
	live      map[ID]struct{}
	allocated int
	released  int
}

func newID() ID {
	return ID(Prefix + uuid.New().String())
}

// Allocate stores data and returns a fresh identifier for it.
func (sc *Scope) Allocate(data []byte, mimeType string) ID {
	id := newID()
	sc.store.put(id, &entry{data: data, mimeType: mimeType, filled: true})
	sc.track(id)
	return id
}

// Reserve returns a fresh identifier whose payload is supplied later with
// Fill. Dereferencing it before then fails with ErrPending.
func (sc *Scope) Reserve(mimeType string) ID {
	id := newID()
	sc.store.put(id, &entry{mimeType: mimeType})
	sc.track(id)
	return id
}

// Fill supplies the payload of a reserved identifier.
func (sc *Scope) Fill(id ID, data []byte) error {
	if !sc.Owns(id) {
		return ErrNotFound
	}
	return sc.store.fill(id, data)
}

// Release frees id. It reports false when id is not live in this scope,
// so every identifier is released at most once.
func (sc *Scope) Release(id ID) bool {
	sc.mu.Lock()
	if _, ok := sc.live[id]; !ok {
		sc.mu.Unlock()
		return false
	}
	delete(sc.live, id)
	sc.released++
	sc.mu.Unlock()

	sc.store.drop(id)
	return true
}

// ReleaseAll frees every identifier still live in the scope and returns
// how many were released.
func (sc *Scope) ReleaseAll() int {
	sc.mu.Lock()
	ids := make([]ID, 0, len(sc.live))
	for id := range sc.live {
		ids = append(ids, id)
	}
	sc.mu.Unlock()

	n := 0
	for _, id := range ids {
		if sc.Release(id) {
			n++
		}
	}
	if n > 0 {
		log.Printf("blob: released %d identifiers for %s", n, sc.owner)
	}
	return n
}

// Get dereferences id through the owning store.
func (sc *Scope) Get(id ID) ([]byte, string, error) {
	return sc.store.Get(id)
}

// Owns reports whether id is live in this scope.
func (sc *Scope) Owns(id ID) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.live[id]
	return ok
}

// Stats returns how many identifiers the scope allocated, released and
// still holds.
func (sc *Scope) Stats() (allocated, released, live int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.allocated, sc.released, len(sc.live)
}

func (sc *Scope) track(id ID) {
	sc.mu.Lock()
	sc.live[id] = struct{}{}
	sc.allocated++
	sc.mu.Unlock()
}
