package towerhttp

import (
	"encoding/json"
	"net/http"

	"github.com/retrowaves/retrowaves/internal/encoder"
)

// handleHealth implements GET /health: 200 while the service is usable,
// 503 when the encoder has latched FAILED, the PCM ring is stuck (100%
// overflowing with zero throughput isn't detectable from here, so this
// checks the one thing Tower itself can assert: the encoder and the HTTP
// accept loop), or HTTP accept is known down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	unhealthy := s.acceptDown.Load()
	if s.Encoder != nil && s.Encoder.OperationalMode() == encoder.StateFailed {
		unhealthy = true
	}
	if unhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type statusResponse struct {
	EncoderMode    string   `json:"encoder_mode"`
	PCMRingRatio   float64  `json:"pcm_ring_fill_ratio"`
	MP3BufferDepth int      `json:"mp3_buffer_depth"`
	ClientCount    int      `json:"client_count"`
	ActiveSource   string   `json:"active_source"`
	PrimarySource  string   `json:"primary_source"`
	Overrides      []string `json:"override_stack"`
	UptimeSeconds  float64  `json:"uptime_seconds"`
	RestartCount   uint64   `json:"restart_count"`
}

// handleStatus implements GET /status: a point-in-time JSON snapshot of
// the transmitter's operational fields, each read from an already-atomic
// or already-locked accessor; nothing here touches the tick path.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: s.UptimeSeconds(),
		RestartCount:  s.restartCount.Load(),
	}
	if s.Encoder != nil {
		resp.EncoderMode = string(s.Encoder.OperationalMode())
	}
	if s.Ring != nil {
		resp.PCMRingRatio = s.Ring.Snapshot().Ratio()
	}
	if s.MP3Buf != nil {
		resp.MP3BufferDepth = s.MP3Buf.Depth()
	}
	if s.Hub != nil {
		resp.ClientCount = s.Hub.ClientCount()
	}
	if s.Graph != nil {
		resp.ActiveSource = string(s.Graph.LastActive())
		resp.PrimarySource = s.Graph.PrimaryName()
		resp.Overrides = s.Graph.Overrides().Names()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type bufferResponse struct {
	Fill     int     `json:"fill"`
	Capacity int     `json:"capacity"`
	Ratio    float64 `json:"ratio"`
}

// handleTowerBuffer implements GET /tower/buffer: the non-blocking,
// sub-100ms telemetry read Station's adaptive PID polls.
func (s *Server) handleTowerBuffer(w http.ResponseWriter, r *http.Request) {
	var resp bufferResponse
	if s.Ring != nil {
		st := s.Ring.Snapshot()
		resp = bufferResponse{Fill: st.Count, Capacity: st.Capacity, Ratio: st.Ratio()}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
