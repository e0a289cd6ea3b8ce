// Package notify pushes per-user events to connected websocket clients.
package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

// Event is the JSON frame sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live connections per user. A user may hold several.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[*subscriber]struct{}
	upgrader    websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Notify queues an event for every connection of the user. Slow clients drop events.
func (h *Hub) Notify(userID uuid.UUID, eventType string, payload interface{}) {
	frame, err := json.Marshal(Event{Type: eventType, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		log.Printf("❌ [NOTIFY] failed to encode %s: %v", eventType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[userID] {
		select {
		case sub.send <- frame:
		default:
			log.Printf("⚠️ [NOTIFY] dropping %s for %s: send buffer full", eventType, userID)
		}
	}
}

// Connections returns the number of live connections of a user.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}

// Serve upgrades an authenticated request and streams events until the client leaves
// GET /ws
func (h *Hub) Serve(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ [NOTIFY] upgrade failed for %s: %v", userID, err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(userID, sub)
	log.Printf("🔌 [NOTIFY] %s connected", userID)

	go h.writeLoop(sub)
	h.readLoop(sub)

	h.remove(userID, sub)
	log.Printf("🔌 [NOTIFY] %s disconnected", userID)
}

func (h *Hub) add(userID uuid.UUID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[userID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.subscribers[userID] = subs
	}
	subs[sub] = struct{}{}
}

func (h *Hub) remove(userID uuid.UUID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[userID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, userID)
	}
	close(sub.send)
}

// readLoop only watches for close and pong frames; clients do not send commands.
func (h *Hub) readLoop(sub *subscriber) {
	defer sub.conn.Close()
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				sub.conn.Close()
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.conn.Close()
				return
			}
		}
	}
}
