// Package history records session lifecycle events in SQLite.
package history

import "time"

// Event is what happened to a session.
type Event string

const (
	EventBegin   Event = "begin"
	EventReady   Event = "ready"
	EventFailed  Event = "failed"
	EventAborted Event = "aborted"
	EventReset   Event = "reset"
)

// Entry is one recorded session event.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Event     Event     `json:"event"`
	Source    string    `json:"source"`
	EntryPath string    `json:"entry_path,omitempty"`
	Prefix    string    `json:"prefix,omitempty"`
	Resources int       `json:"resources"`
	Released  int       `json:"released"`
	Error     string    `json:"error,omitempty"`
}
