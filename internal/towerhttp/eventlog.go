package towerhttp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retrowaves/retrowaves/internal/events"
)

// HistoryCapacity bounds the in-memory event log fed by
// /tower/events/ingest.
const HistoryCapacity = 1000

// IngestedEvent is a Station event after Tower has stamped it, exactly what
// both /tower/events/history and the /tower/events WebSocket serve.
type IngestedEvent struct {
	events.Event
	EventID         string    `json:"event_id"`
	TowerReceivedAt time.Time `json:"tower_received_at"`
}

// EventLog is Tower's bounded ring of recently ingested Station events plus
// the set of currently-subscribed WebSocket fan-out channels.
type EventLog struct {
	mu   sync.Mutex
	buf  []IngestedEvent
	subs map[uint64]chan IngestedEvent
	next uint64
}

// NewEventLog returns an empty EventLog.
func NewEventLog() *EventLog {
	return &EventLog{subs: make(map[uint64]chan IngestedEvent)}
}

// Ingest stamps ev with a fresh event_id and tower_received_at, appends it
// to the bounded history (dropping the oldest entry once full), and fans
// it out to every subscriber without blocking on any of them.
func (l *EventLog) Ingest(ev events.Event, now time.Time) IngestedEvent {
	stamped := IngestedEvent{Event: ev, EventID: uuid.NewString(), TowerReceivedAt: now}

	l.mu.Lock()
	l.buf = append(l.buf, stamped)
	if len(l.buf) > HistoryCapacity {
		l.buf = l.buf[len(l.buf)-HistoryCapacity:]
	}
	for _, ch := range l.subs {
		select {
		case ch <- stamped:
		default: // a slow subscriber misses this one rather than stalling ingest
		}
	}
	l.mu.Unlock()
	return stamped
}

// History returns every currently retained event, oldest first.
func (l *EventLog) History() []IngestedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]IngestedEvent, len(l.buf))
	copy(out, l.buf)
	return out
}

// Subscribe registers a new fan-out channel and returns it plus an unsubscribe
// func the caller must invoke on disconnect.
func (l *EventLog) Subscribe(depth int) (<-chan IngestedEvent, func()) {
	l.mu.Lock()
	id := l.next
	l.next++
	ch := make(chan IngestedEvent, depth)
	l.subs[id] = ch
	l.mu.Unlock()

	return ch, func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
		close(ch)
	}
}
