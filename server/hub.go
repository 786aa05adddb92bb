// Package server exposes controller notifications to observers over a
// websocket feed.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans notifications out to websocket subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the message.
type Hub struct {
	log    *zap.Logger
	buffer int

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	dropped atomic.Uint64
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with a per-subscriber buffer of the given size.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, buffer: buffer, subs: map[*subscriber]struct{}{}}
}

// Publish implements engine.Publisher.
func (h *Hub) Publish(n engine.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.log.Warn("notification not encodable", zap.String("kind", n.Kind), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// ServeHTTP upgrades the request and streams notifications until the peer
// goes away. Anything the peer sends is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("feed upgrade failed", zap.Error(err))
		return
	}
	s := &subscriber{conn: conn, send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.log.Info("feed subscriber joined", zap.String("remote", r.RemoteAddr))

	go h.writeLoop(s)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(s)
	h.log.Info("feed subscriber left", zap.String("remote", r.RemoteAddr))
}

func (h *Hub) writeLoop(s *subscriber) {
	defer s.conn.Close()
	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("feed write failed", zap.Error(err))
			h.remove(s)
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

// Subscribers returns the number of connected observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many messages were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
