package towerhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retrowaves/retrowaves/internal/events"
)

// wsSubscriberDepth bounds each WebSocket subscriber's fan-out channel; a
// slow subscriber misses messages rather than stalling ingest (see
// EventLog.Ingest).
const wsSubscriberDepth = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// /tower/events is server-push only and carries no cross-origin
	// credentials; any origin may subscribe to the broadcast feed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventsIngest implements POST /tower/events/ingest: accepts one
// JSON event from Station, validates event_type against the closed set,
// and fans it out. Returns 200 on accept, 400 on schema/type violation.
// One-way: Tower never responds with timing data beyond the bare status.
func (s *Server) handleEventsIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var ev events.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "malformed event body", http.StatusBadRequest)
		return
	}
	if !events.Valid(ev.Type) {
		http.Error(w, "unknown event_type", http.StatusBadRequest)
		return
	}
	s.EventLog.Ingest(ev, time.Now())
	w.WriteHeader(http.StatusOK)
}

// handleEventsHistory implements GET /tower/events/history: the bounded
// ingest buffer as a JSON array, oldest first. Operational inspection
// only; it reads a copy of the log and never touches the broadcast path.
func (s *Server) handleEventsHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.EventLog.History())
}

// handleEventsWS implements GET /tower/events: a server-push-only
// WebSocket. Each message is one complete JSON IngestedEvent. A
// disconnected client is unsubscribed; a too-slow client misses messages
// that do not fit its channel. Ingest never waits on either.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.EventLog.Subscribe(wsSubscriberDepth)
	defer unsubscribe()

	// Detect client-initiated close without attempting to read any
	// meaningful payload: this endpoint is push-only.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
