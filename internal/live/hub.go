// Package live pushes standings updates to WebSocket subscribers.
package live

import (
	"encoding/json"
	"sync"
	"time"

	"tohomc/internal/platform/logger"

	"github.com/gorilla/websocket"
)

const MessageTypeStandings = "standings"

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// subscriber owns one connection. Only its writePump writes to conn.
type subscriber struct {
	conn Conn
	send chan []byte
}

// Hub tracks subscribers per contest. The hub lock guards membership only;
// messages are queued on each subscriber's buffered channel and a subscriber
// whose buffer is full is dropped.
type Hub struct {
	mu       sync.Mutex
	contests map[string]map[Conn]*subscriber
}

func NewHub() *Hub {
	return &Hub{
		contests: make(map[string]map[Conn]*subscriber),
	}
}

// AddConnection subscribes conn to contestID and starts its writer.
func (h *Hub) AddConnection(contestID string, conn Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.contests[contestID] == nil {
		h.contests[contestID] = make(map[Conn]*subscriber)
	}
	h.contests[contestID][conn] = sub
	total := len(h.contests[contestID])
	h.mu.Unlock()

	logger.Debug.Printf("live: subscriber joined contest %s (total: %d)", contestID, total)
	go h.writePump(contestID, sub)
}

// RemoveConnection unsubscribes conn. Its writer flushes what is queued,
// sends a close frame and closes the connection.
func (h *Hub) RemoveConnection(contestID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(contestID, conn)
}

func (h *Hub) removeLocked(contestID string, conn Conn) {
	conns, ok := h.contests[contestID]
	if !ok {
		return
	}
	sub, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	close(sub.send)
	if len(conns) == 0 {
		delete(h.contests, contestID)
	}
	logger.Debug.Printf("live: subscriber left contest %s", contestID)
}

// Subscribers returns how many connections watch contestID.
func (h *Hub) Subscribers(contestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contests[contestID])
}

// Broadcast queues msg for every subscriber of contestID.
func (h *Hub) Broadcast(contestID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error.Printf("live: marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, sub := range h.contests[contestID] {
		h.enqueueLocked(contestID, conn, sub, data)
	}
}

// PublishStandings satisfies the standings publisher used by the services.
func (h *Hub) PublishStandings(contestID string, standings interface{}) {
	h.Broadcast(contestID, Message{Type: MessageTypeStandings, Data: standings})
}

// SendTo queues msg for one subscriber.
func (h *Hub) SendTo(contestID string, conn Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error.Printf("live: marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.contests[contestID][conn]; ok {
		h.enqueueLocked(contestID, conn, sub, data)
	}
}

func (h *Hub) enqueueLocked(contestID string, conn Conn, sub *subscriber, data []byte) {
	select {
	case sub.send <- data:
	default:
		logger.Warn.Printf("live: subscriber on contest %s is not keeping up, dropping it", contestID)
		h.removeLocked(contestID, conn)
	}
}

func (h *Hub) writePump(contestID string, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			if err := sub.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.RemoveConnection(contestID, sub.conn)
				return
			}
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn.Printf("live: write error on contest %s: %v", contestID, err)
				h.RemoveConnection(contestID, sub.conn)
				return
			}
		case <-ticker.C:
			if err := sub.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.RemoveConnection(contestID, sub.conn)
				return
			}
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn.Printf("live: ping error on contest %s: %v", contestID, err)
				h.RemoveConnection(contestID, sub.conn)
				return
			}
		}
	}
}
