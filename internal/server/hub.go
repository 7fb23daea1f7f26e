package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
)

// Hub fans published reports out to websocket subscribers. Slow subscribers
// lose messages instead of blocking the publisher.
type Hub struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, subs: make(map[chan []byte]struct{})}
}

func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.log.Debug("ws subscriber lagging, message dropped")
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// serve streams to conn until the client goes away or ctx ends. initial, when
// non-nil, is sent first so new clients see the latest report immediately.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, initial []byte) {
	ch := h.subscribe()
	defer h.unsubscribe(ch)
	// Inbound frames are ignored; CloseRead handles control frames and
	// cancels ctx once the peer disconnects.
	ctx = conn.CloseRead(ctx)
	if initial != nil {
		if err := write(ctx, conn, initial); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
			return
		case payload := <-ch:
			if err := write(ctx, conn, payload); err != nil {
				h.log.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
