// Package events pushes project changes to connected editors over websockets.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/catdesk/backend/internal/logging"
)

// Event types.
const (
	SegmentUpdated  = "segment.updated"
	SegmentsChanged = "segments.changed"
	JobUpdated      = "job.updated"
	ProjectDeleted  = "project.deleted"
)

// Event is one message sent to the clients of a project.
type Event struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId"`
	SegmentID int64       `json:"segmentId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Time      time.Time   `json:"time"`
}

// Publisher delivers events. The service layer depends on this, not on Hub.
type Publisher interface {
	Publish(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

type client struct {
	conn    *websocket.Conn
	project string
	send    chan []byte
}

// Hub fans events out to the websocket clients of each project.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]bool
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(*http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		rooms: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log: logging.For("events"),
	}
}

// Publish sends ev to every client of its project. Slow clients drop
// messages instead of blocking the caller.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("marshal event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[ev.ProjectID] {
		select {
		case c.send <- msg:
		default:
			h.log.WithField("project", ev.ProjectID).Debug("client queue full, event dropped")
		}
	}
}

// Clients returns the number of connections on a project.
func (h *Hub) Clients(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// Serve upgrades the request and streams events of projectID until the
// client disconnects. Authorization happens before this is called.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, projectID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, project: projectID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.project] == nil {
		h.rooms[c.project] = make(map[*client]bool)
	}
	h.rooms[c.project][c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.project]
	if !room[c] {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.project)
	}
}

// readPump only drains control frames; clients do not send commands.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
