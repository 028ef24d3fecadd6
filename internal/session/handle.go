package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ziadkadry99/zipsite/internal/archive"
)

// EventKind names a lifecycle signal.
type EventKind string

const (
	EventBegin    EventKind = "begin"
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
	EventFail     EventKind = "fail"
	EventAbort    EventKind = "abort"
	EventReset    EventKind = "reset"
)

// Event is delivered to lifecycle observers.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	State     string    `json:"state"`
	Progress  float64   `json:"progress"`
	Error     string    `json:"error,omitempty"`

	// Guidance is markdown help attached to cross-origin fetch failures.
	Guidance string    `json:"guidance,omitempty"`
	Time     time.Time `json:"time"`
}

// Handle is the lifecycle handle of one load attempt. Observers are purely
// informational; nothing in the load depends on them.
type Handle struct {
	sessionID string
	source    string

	mu       sync.Mutex
	progress float64
	state    State
	finished bool
	cancel   context.CancelFunc
	subs     map[int]func(Event)
	nextSub  int
}

func newHandle(sessionID, source string, cancel context.CancelFunc) *Handle {
	return &Handle{
		sessionID: sessionID,
		source:    source,
		cancel:    cancel,
		subs:      make(map[int]func(Event)),
	}
}

// Subscribe registers fn for later events and returns a function that
// removes it.
func (h *Handle) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Value returns the current progress in [0,1].
func (h *Handle) Value() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// Begin signals that extraction started.
func (h *Handle) Begin() {
	h.emit(EventBegin, nil, func() { h.state = Extracting })
}

// Progress reports fraction. Values are clamped to [0,1] and never move
// backwards; a smaller value is ignored.
func (h *Handle) Progress(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	h.mu.Lock()
	if h.finished || fraction <= h.progress {
		h.mu.Unlock()
		return
	}
	h.progress = fraction
	h.mu.Unlock()
	h.emit(EventProgress, nil, nil)
}

// Complete signals that the session is ready.
func (h *Handle) Complete() {
	h.emit(EventComplete, nil, func() {
		h.progress = 1
		h.state = Ready
		h.finished = true
	})
}

// Fail signals that the attempt ended with err.
func (h *Handle) Fail(err error) {
	kind := EventFail
	if errors.Is(err, context.Canceled) {
		kind = EventAbort
	}
	h.emit(kind, err, func() {
		h.state = Empty
		h.finished = true
	})
}

// Abort cancels the in-flight load. It is a no-op once the load finished.
func (h *Handle) Abort() {
	h.mu.Lock()
	cancel := h.cancel
	finished := h.finished
	h.mu.Unlock()
	if !finished && cancel != nil {
		cancel()
	}
}

func (h *Handle) reset() {
	h.emit(EventReset, nil, func() {
		h.state = Empty
		h.progress = 0
		h.finished = true
	})
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) emit(kind EventKind, err error, update func()) {
	h.mu.Lock()
	if update != nil {
		update()
	}
	ev := Event{
		Kind:      kind,
		SessionID: h.sessionID,
		Source:    h.source,
		State:     h.state.String(),
		Progress:  h.progress,
		Time:      time.Now(),
	}
	subs := make([]func(Event), 0, len(h.subs))
	for i := 0; i < h.nextSub; i++ {
		if fn, ok := h.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	h.mu.Unlock()

	if err != nil {
		ev.Error = err.Error()
		var coe *archive.CrossOriginError
		if errors.As(err, &coe) {
			ev.Guidance = coe.Guidance
		}
	}
	for _, fn := range subs {
		fn(ev)
	}
}
