// Package ws fans bulk job progress out to websocket subscribers.
package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// Hub keeps the websocket connections subscribed to each topic.  A topic is
// a bulk job id.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*websocket.Conn]bool
	// WriteTimeout bounds each write; a subscriber that stops reading is
	// dropped instead of stalling the job that broadcasts.
	WriteTimeout time.Duration
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*websocket.Conn]bool), WriteTimeout: time.Second}
}

func (h *Hub) write(conn *websocket.Conn, data []byte) error {
	if h.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Add subscribes conn to topic.  A non-nil initial value is written to conn
// first, under the same lock broadcasts use, so the two never interleave.
func (h *Hub) Add(topic string, conn *websocket.Conn, initial any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if initial != nil {
		data, err := json.Marshal(Message{Type: "progress", Topic: topic, Data: initial})
		if err != nil {
			return err
		}
		if err := h.write(conn, data); err != nil {
			return err
		}
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*websocket.Conn]bool)
	}
	h.topics[topic][conn] = true
	log.Printf("ws: client subscribed to %s (total: %d)", topic, len(h.topics[topic]))
	return nil
}

func (h *Hub) Remove(topic string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.topics[topic]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Subscribers returns how many connections listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Broadcast writes v to every subscriber of topic.  Connections that fail
// to accept the write are dropped.
func (h *Hub) Broadcast(topic string, v any) {
	data, err := json.Marshal(Message{Type: "progress", Topic: topic, Data: v})
	if err != nil {
		log.Printf("ws: marshal error: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.topics[topic] {
		if err := h.write(conn, data); err != nil {
			log.Printf("ws: write error: %v", err)
			conn.Close()
			delete(h.topics[topic], conn)
		}
	}
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
}
