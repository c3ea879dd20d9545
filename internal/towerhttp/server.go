// Package towerhttp is Tower's HTTP and WebSocket surface: /stream,
// /health, /status, /tower/buffer, /tower/events(/ingest), /control/source,
// and /metrics. Handlers only ever read from or issue
// control-plane calls into the audio-path components; none of them sit on
// the tick path.
package towerhttp

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retrowaves/retrowaves/internal/broadcast"
	"github.com/retrowaves/retrowaves/internal/encoder"
	"github.com/retrowaves/retrowaves/internal/metrics"
	"github.com/retrowaves/retrowaves/internal/mp3buffer"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
	"github.com/retrowaves/retrowaves/internal/sourcegraph"
)

// Server bundles every collaborator Tower's HTTP surface reads from or
// drives, and builds the *http.ServeMux exposing the external interface.
type Server struct {
	Hub      *broadcast.Hub
	Ring     *ringbuffer.PCMRing
	MP3Buf   *mp3buffer.Buffer
	Encoder  *encoder.Manager
	Graph    *sourcegraph.Graph
	Registry *sourcegraph.Registry
	EventLog *EventLog
	Metrics  *metrics.Registry

	started time.Time

	restartCount atomic.Uint64
	acceptDown   atomic.Bool
}

// New builds a Server and wires Encoder's state-change callback to track
// restart_count (incremented once per entry into RESTARTING) and the
// metrics registry's encoder-restart counter.
func New(s Server) *Server {
	srv := &s
	srv.started = time.Now()
	if srv.Encoder != nil {
		srv.Encoder.OnStateChange(func(state encoder.State) {
			if state == encoder.StateRestarting {
				srv.restartCount.Add(1)
				if srv.Metrics != nil {
					srv.Metrics.EncoderRestarts.Inc()
				}
			}
		})
	}
	return srv
}

// Mux builds the HTTP handler exposing every Tower endpoint.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/stream", s.Hub)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", brotliCompress(s.handleStatus))
	mux.HandleFunc("/tower/buffer", brotliCompress(s.handleTowerBuffer))
	mux.HandleFunc("/tower/events/ingest", s.handleEventsIngest)
	mux.HandleFunc("/tower/events/history", brotliCompress(s.handleEventsHistory))
	mux.HandleFunc("/tower/events", s.handleEventsWS)
	mux.HandleFunc("/control/source", s.handleControlSource)
	if s.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Gatherer(), promhttp.HandlerOpts{}))
	}
	return mux
}

// RunBackground starts every background loop the Server's handlers depend
// on (the MP3 drain into the broadcast hub, periodic gauge updates) and
// returns once ctx is cancelled.
func (s *Server) RunBackground(ctx context.Context) {
	go runMP3Drain(ctx, s.Encoder, s.Hub)
	s.runMetricsLoop(ctx)
}

// SetAcceptDown marks whether the HTTP listener itself is known to be
// unhealthy (e.g. Serve returned). /health folds this into its 503 logic
// alongside encoder FAILED and ring buffer exhaustion.
func (s *Server) SetAcceptDown(down bool) {
	s.acceptDown.Store(down)
}

// UptimeSeconds reports seconds since the Server was constructed, used by
// /status.
func (s *Server) UptimeSeconds() float64 {
	return time.Since(s.started).Seconds()
}

// RestartCount reports how many times the encoder has entered RESTARTING.
func (s *Server) RestartCount() uint64 {
	return s.restartCount.Load()
}

func (s *Server) runMetricsLoop(ctx context.Context) {
	if s.Metrics == nil {
		return
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Ring != nil {
				s.Metrics.PCMRingFillRatio.Set(s.Ring.Snapshot().Ratio())
			}
			if s.MP3Buf != nil {
				s.Metrics.MP3BufferDepth.Set(float64(s.MP3Buf.Depth()))
			}
			s.Metrics.ClientCount.Set(float64(s.Hub.ClientCount()))
		}
	}
}
