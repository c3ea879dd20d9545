package towerhttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/retrowaves/retrowaves/internal/broadcast"
	"github.com/retrowaves/retrowaves/internal/events"
	"github.com/retrowaves/retrowaves/internal/mp3buffer"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
	"github.com/retrowaves/retrowaves/internal/sourcegraph"
)

func newTestServer() *Server {
	ring := ringbuffer.New(5)
	overrides := sourcegraph.NewOverrideStack(sourcegraph.MinOverrideCapacity)
	graph := sourcegraph.NewGraph(sourcegraph.NewProgramNode(ring), overrides, nil)
	registry := sourcegraph.NewRegistry()
	registry.Register("tone", sourcegraph.NewToneNode())
	registry.Register("silence", sourcegraph.SilenceNode{})

	return New(Server{
		Hub:      broadcast.NewHub(),
		Ring:     ring,
		MP3Buf:   mp3buffer.New(mp3buffer.DefaultCapacity),
		Graph:    graph,
		Registry: registry,
		EventLog: NewEventLog(),
	})
}

func TestHealthReportsOKByDefault(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthReportsServiceUnavailableWhenAcceptDown(t *testing.T) {
	s := newTestServer()
	s.SetAcceptDown(true)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStatusReportsGraphAndBufferFields(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PrimarySource != "" {
		t.Fatalf("primary_source = %q, want empty (no primary configured)", resp.PrimarySource)
	}
}

func TestTowerBufferReportsRingSnapshot(t *testing.T) {
	s := newTestServer()
	s.Ring.Push(pcmframe.Zero)
	req := httptest.NewRequest(http.MethodGet, "/tower/buffer", nil)
	rec := httptest.NewRecorder()
	s.handleTowerBuffer(rec, req)

	var resp bufferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Capacity != 5 {
		t.Fatalf("capacity = %d, want 5", resp.Capacity)
	}
	if resp.Fill != 1 {
		t.Fatalf("fill = %d, want 1", resp.Fill)
	}
}

func TestEventsIngestAcceptsValidEventType(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(events.NewStationStartup(time.Now()))
	req := httptest.NewRequest(http.MethodPost, "/tower/events/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleEventsIngest(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(s.EventLog.History()) != 1 {
		t.Fatalf("expected one ingested event, got %d", len(s.EventLog.History()))
	}
}

func TestEventsIngestRejectsUnknownType(t *testing.T) {
	s := newTestServer()
	body := []byte(`{"event_type":"not_a_real_type","timestamp":"2024-01-01T00:00:00Z","metadata":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/tower/events/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleEventsIngest(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEventsIngestRejectsWrongMethod(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/tower/events/ingest", nil)
	rec := httptest.NewRecorder()
	s.handleEventsIngest(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestControlSourceSetPrimaryRequiresRegisteredNode(t *testing.T) {
	s := newTestServer()
	body := []byte(`{"set_primary":"does-not-exist"}`)
	req := httptest.NewRequest(http.MethodPost, "/control/source", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleControlSource(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestControlSourceSetPrimarySucceedsForRegisteredNode(t *testing.T) {
	s := newTestServer()
	body := []byte(`{"set_primary":"tone"}`)
	req := httptest.NewRequest(http.MethodPost, "/control/source", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleControlSource(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if s.Graph.PrimaryName() != "tone" {
		t.Fatalf("PrimaryName() = %q, want tone", s.Graph.PrimaryName())
	}
}

func TestControlSourcePushPopOverrideRoundTrips(t *testing.T) {
	s := newTestServer()

	push := []byte(`{"push_override":"tone"}`)
	req := httptest.NewRequest(http.MethodPost, "/control/source", bytes.NewReader(push))
	rec := httptest.NewRecorder()
	s.handleControlSource(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("push status = %d, want 200", rec.Code)
	}
	if s.Graph.Overrides().Len() != 1 {
		t.Fatalf("expected one active override after push")
	}

	pop := []byte(`{"pop_override":true}`)
	req2 := httptest.NewRequest(http.MethodPost, "/control/source", bytes.NewReader(pop))
	rec2 := httptest.NewRecorder()
	s.handleControlSource(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("pop status = %d, want 200", rec2.Code)
	}
	if s.Graph.Overrides().Len() != 0 {
		t.Fatalf("expected override stack empty after pop")
	}
}

func TestControlSourceRejectsRequestWithNoRecognizedOperation(t *testing.T) {
	s := newTestServer()
	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/control/source", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleControlSource(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestControlSourceModeSwitchRejectsUnknownMode(t *testing.T) {
	s := newTestServer()
	body := []byte(`{"mode":"laser_show"}`)
	req := httptest.NewRequest(http.MethodPost, "/control/source", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleControlSource(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEventsHistoryReturnsIngestedEventsOldestFirst(t *testing.T) {
	s := newTestServer()
	s.EventLog.Ingest(events.NewStationStartup(time.Now()), time.Now())
	s.EventLog.Ingest(events.NewStationShutdown(time.Now()), time.Now())

	req := httptest.NewRequest(http.MethodGet, "/tower/events/history", nil)
	rec := httptest.NewRecorder()
	s.handleEventsHistory(rec, req)

	var got []IngestedEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != events.TypeStationStartup || got[1].Type != events.TypeStationShutdown {
		t.Fatalf("history out of order: %s then %s", got[0].Type, got[1].Type)
	}
	if got[0].EventID == "" || got[0].TowerReceivedAt.IsZero() {
		t.Fatal("history entries must carry the injected event_id and tower_received_at")
	}
}
