// Package gateway fans strategy events out to dashboard WebSocket clients.
package gateway

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"

	"github.com/gorilla/websocket"
)

// Hub tracks connected clients and broadcasts envelopes of the form
// {"type":"event","seq":N,"ts":"...","data":{...}} to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	seq     int64

	replay   *ReplayBuffer
	upgrader websocket.Upgrader
}

// NewHub creates a Hub keeping the last replaySize envelopes for catch-up.
func NewHub(replaySize int) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		replay:  NewReplayBuffer(replaySize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Emit implements model.EventSink for in-process delivery.
func (h *Hub) Emit(_ context.Context, ev model.Event) {
	h.Broadcast("event", ev.JSON())
}

// Broadcast wraps data in an envelope and sends it to every client. Slow
// clients miss messages rather than stall the sender.
func (h *Hub) Broadcast(kind string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	buf := make([]byte, 0, len(kind)+len(data)+96)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, kind...)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')

	h.replay.Push(seq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- buf:
		default:
		}
	}
}

// ServeHTTP upgrades to a WebSocket. ?since=N replays buffered envelopes
// with seq > N before live traffic.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h}

	// Register before replaying so nothing broadcast in between is lost;
	// the client may then see a seq twice and must dedupe on seq.
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected (%d total)", count)

	if v := r.URL.Query().Get("since"); v != "" {
		if after, err := strconv.ParseInt(v, 10, 64); err == nil {
			for _, env := range h.replay.Since(after) {
				select {
				case c.send <- env:
				default:
				}
			}
		}
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the last broadcast sequence number.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}
