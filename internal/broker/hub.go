package broker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/observability"
)

// ConnInfo describes a subscribed websocket connection for audit purposes.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Hub delivers published events to locally connected websocket clients. It
// maintains one room per channel name (`user:<id>`, `chat:<id>`). Writes to a
// connection are serialized through a per-connection mutex shared across all
// of its channels: gorilla/websocket allows at most one concurrent writer,
// and deliveries come from HTTP handlers, the fan-out pool and the redis
// relay at once.
type Hub struct {
	channels map[string]map[*websocket.Conn]ConnInfo
	writers  map[*websocket.Conn]*sync.Mutex
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*websocket.Conn]ConnInfo),
		writers:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Subscribe registers a websocket connection on a channel.
func (h *Hub) Subscribe(channel string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*websocket.Conn]ConnInfo)
	}
	h.channels[channel][conn] = info
	if _, ok := h.writers[conn]; !ok {
		h.writers[conn] = &sync.Mutex{}
	}
}

// Unsubscribe removes a connection from a channel.
func (h *Hub) Unsubscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(channel, conn)
	if !h.subscribedLocked(conn) {
		delete(h.writers, conn)
	}
}

// Drop removes a connection from every channel it is subscribed to.
func (h *Hub) Drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.channels {
		h.removeLocked(channel, conn)
	}
	delete(h.writers, conn)
}

func (h *Hub) removeLocked(channel string, conn *websocket.Conn) {
	if conns, ok := h.channels[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) subscribedLocked(conn *websocket.Conn) bool {
	for _, conns := range h.channels {
		if _, ok := conns[conn]; ok {
			return true
		}
	}
	return false
}

// Subscribers reports how many connections are on a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Publish marshals the payload into an envelope and writes it to every
// connection on the channel. Write errors evict the connection.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("broker marshal failed channel=%s event=%s: %v", channel, event, err)
		observability.IncBrokerPublishError()
		return
	}
	h.Deliver(Envelope{
		Channel:    channel,
		Event:      event,
		Payload:    body,
		OccurredAt: time.Now().UTC(),
	})
}

// Deliver writes an already-built envelope to local subscribers. Used both by
// Publish and by the redis bridge relaying remote events.
func (h *Hub) Deliver(envelope Envelope) {
	frame, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("broker marshal failed channel=%s: %v", envelope.Channel, err)
		observability.IncBrokerPublishError()
		return
	}

	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	h.mu.RLock()
	targets := make([]target, 0, len(h.channels[envelope.Channel]))
	for conn := range h.channels[envelope.Channel] {
		targets = append(targets, target{conn: conn, mu: h.writers[conn]})
	}
	h.mu.RUnlock()

	for _, t := range targets {
		if t.mu == nil {
			continue
		}
		t.mu.Lock()
		err := t.conn.WriteMessage(websocket.TextMessage, frame)
		t.mu.Unlock()
		if err != nil {
			log.Printf("websocket write error channel=%s: %v", envelope.Channel, err)
			observability.IncBrokerPublishError()
			t.conn.Close()
			h.Drop(t.conn)
		}
	}
	observability.IncBrokerEvent(envelope.Event)
}

// Close drops every connection.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, conns := range h.channels {
		for conn := range conns {
			conn.Close()
		}
		delete(h.channels, channel)
	}
	h.writers = make(map[*websocket.Conn]*sync.Mutex)
	return nil
}
