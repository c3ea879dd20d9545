// Package broadcast fans encoded MP3 frames out to HTTP listeners on
// /stream: one producer (the Tower tick loop), many consumers, each
// consumer's pace independent of the others.
package broadcast

import (
	"net/http"
	"sync"
	"time"
)

// EvictionBudget is how long a single client write may block before that
// client is dropped. A slow listener must never hold back the others or
// the tick loop.
const EvictionBudget = 250 * time.Millisecond

// clientQueueDepth bounds how many frames can be pending for a client.
// Audio frames must stay in order, so a full channel can't just drop the
// newest one in and discard the oldest — Push instead evicts the client
// outright when its channel is full.
const clientQueueDepth = 32

// client is a single listener's per-connection state. Each client has its
// own goroutine pulling off frameCh and writing to its ResponseWriter, so
// one listener's network stall cannot delay another's.
type client struct {
	id      uint64
	frameCh chan []byte
	done    chan struct{}
	evicted chan struct{}
}

// Hub holds the set of currently connected /stream listeners.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]*client
	nextID  uint64

	writeBudget time.Duration
}

// NewHub returns an empty listener hub with the default eviction budget.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]*client), writeBudget: EvictionBudget}
}

// SetWriteBudget overrides the per-client write deadline
// (TOWER_CLIENT_TIMEOUT_MS). Call before serving.
func (h *Hub) SetWriteBudget(d time.Duration) {
	if d > 0 {
		h.writeBudget = d
	}
}

// Push delivers one MP3 frame to every currently connected client,
// non-blocking: a client whose channel is full is evicted rather than
// allowed to stall the push. The same frame slice is queued to every
// client and written later by each client's handler, so it stays
// referenced after Push returns; callers must not mutate it afterward.
func (h *Hub) Push(frame []byte) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.frameCh <- frame:
		default:
			h.evict(c)
		}
	}
}

// ClientCount reports the number of currently connected listeners, for
// /status and /metrics.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) evict(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
	} else {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	select {
	case <-c.evicted:
	default:
		close(c.evicted)
	}
}

// ServeHTTP implements the GET /stream contract: 200, audio/mpeg,
// Cache-Control: no-cache, Connection: keep-alive, no Content-Length, a
// flush after every frame, and admission beginning at the next complete
// frame after the listener connects (which falls out naturally: the
// listener's channel is empty until the next Push call). The handler sets
// no Transfer-Encoding, so for an HTTP/1.1 request net/http sends the body
// with chunked transfer encoding; it is not sent as a raw unchunked body.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "audio/mpeg")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := &client{
		frameCh: make(chan []byte, clientQueueDepth),
		done:    make(chan struct{}),
		evicted: make(chan struct{}),
	}
	h.mu.Lock()
	h.nextID++
	c.id = h.nextID
	h.clients[c.id] = c
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.evicted:
			return
		case frame := <-c.frameCh:
			writeDone := make(chan error, 1)
			go func() {
				_, err := w.Write(frame)
				writeDone <- err
			}()
			select {
			case err := <-writeDone:
				if err != nil {
					return
				}
				flusher.Flush()
			case <-time.After(h.writeBudget):
				return
			}
		}
	}
}
