// Integration tests: wire the real transmitter component graph together
// in-process (ring, source graph, pump, hub, HTTP surface) and drive it the
// way cmd/tower's main does, minus the external encoder subprocess.
package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/retrowaves/retrowaves/internal/audiopump"
	"github.com/retrowaves/retrowaves/internal/broadcast"
	"github.com/retrowaves/retrowaves/internal/mp3buffer"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
	"github.com/retrowaves/retrowaves/internal/sourcegraph"
	"github.com/retrowaves/retrowaves/internal/towerhttp"
)

// recordingEncoder stands in for encoder.Manager on the pump's write path.
type recordingEncoder struct {
	mu     sync.Mutex
	frames int
}

func (r *recordingEncoder) WritePCM(frame []byte) {
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
}

func (r *recordingEncoder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func TestIntegration_coldStartFallsBackToTone(t *testing.T) {
	ring := ringbuffer.New(5)
	overrides := sourcegraph.NewOverrideStack(sourcegraph.MinOverrideCapacity)
	graph := sourcegraph.NewGraph(sourcegraph.NewProgramNode(ring), overrides, nil)
	enc := &recordingEncoder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pump := audiopump.New(graph, enc)
	go pump.Run(ctx)

	deadline := time.After(2 * time.Second)
	for enc.count() < 10 {
		select {
		case <-deadline:
			t.Fatalf("pump produced only %d frames in 2s", enc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	// No Station has ever connected: the walk must land on tone.
	if got := graph.LastActive(); got != sourcegraph.SourceTone {
		t.Fatalf("active source = %s, want tone with no program and no file", got)
	}
}

func TestIntegration_statusAndBufferEndpoints(t *testing.T) {
	ring := ringbuffer.New(5)
	ring.Push(pcmframe.Zero)
	overrides := sourcegraph.NewOverrideStack(sourcegraph.MinOverrideCapacity)
	graph := sourcegraph.NewGraph(sourcegraph.NewProgramNode(ring), overrides, nil)
	registry := sourcegraph.NewRegistry()
	registry.Register("tone", sourcegraph.NewToneNode())
	registry.Register("silence", sourcegraph.SilenceNode{})

	srv := towerhttp.New(towerhttp.Server{
		Hub:      broadcast.NewHub(),
		Ring:     ring,
		MP3Buf:   mp3buffer.New(mp3buffer.DefaultCapacity),
		Graph:    graph,
		Registry: registry,
		EventLog: towerhttp.NewEventLog(),
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tower/buffer")
	if err != nil {
		t.Fatalf("GET /tower/buffer: %v", err)
	}
	defer resp.Body.Close()
	var buf struct {
		Fill     int     `json:"fill"`
		Capacity int     `json:"capacity"`
		Ratio    float64 `json:"ratio"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&buf); err != nil {
		t.Fatalf("decode buffer: %v", err)
	}
	if buf.Fill != 1 || buf.Capacity != 5 {
		t.Fatalf("buffer = %+v, want fill=1 capacity=5", buf)
	}

	health, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("/health = %d, want 200", health.StatusCode)
	}
}

func TestIntegration_streamDeliversPushedFrames(t *testing.T) {
	hub := broadcast.NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("Content-Type = %q, want audio/mpeg", ct)
	}

	// Give the hub a moment to register the client, then broadcast.
	deadline := time.After(2 * time.Second)
	for hub.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered with the hub")
		case <-time.After(5 * time.Millisecond):
		}
	}
	payload := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	hub.Push(payload)

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(resp.Body, got); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("stream byte %d = %#x, want %#x", i, got[i], payload[i])
		}
	}
}
