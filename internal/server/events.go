package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/zipsite/internal/session"
)

// kindStatus is the first message on every stream: a snapshot of the
// current session.
const kindStatus session.EventKind = "status"

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventMessage is the outgoing WebSocket message format.
type eventMessage struct {
	session.Event
	GuidanceHTML string `json:"guidance_html,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan eventMessage
}

// hub fans lifecycle events out to every connected event stream. A slow
// client misses progress events rather than holding up the load.
type hub struct {
	manager *session.Manager

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func newHub(manager *session.Manager) *hub {
	return &hub{manager: manager, clients: make(map[*client]struct{})}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan eventMessage, sendBuffer)}
	c.send <- h.snapshot()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)

	// The stream is one-way; reading only detects the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			break
		}
	}
	h.remove(c)
}

func (h *hub) snapshot() eventMessage {
	ev := session.Event{Kind: kindStatus, State: session.Empty.String(), Time: time.Now()}
	if s := h.manager.Current(); s != nil {
		ev.SessionID = s.ID
		ev.Source = s.Source
		ev.State = s.State().String()
		ev.Progress = s.Handle().Value()
	}
	return eventMessage{Event: ev}
}

func (h *hub) writeLoop(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("server: websocket write: %v", err)
			c.conn.Close()
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}

// broadcast is subscribed to the session manager.
func (h *hub) broadcast(ev session.Event) {
	msg := eventMessage{Event: ev, GuidanceHTML: renderGuidance(ev.Guidance)}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if ev.Kind == session.EventProgress {
			select {
			case c.send <- msg:
			default:
			}
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Terminal events must not be dropped silently.
			log.Printf("server: dropping slow event stream client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
