// Package stationhttp exposes Station's control-plane surface: the
// authoritative /station/state read, and the outbound event emitter that
// forwards advisory events to Tower's ingest endpoint.
package stationhttp

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/retrowaves/retrowaves/internal/events"
	"github.com/retrowaves/retrowaves/internal/httpclient"
	"github.com/retrowaves/retrowaves/internal/stationstate"
)

type stateResponse struct {
	StationState string            `json:"station_state"`
	Since        time.Time         `json:"since"`
	CurrentAudio *currentAudioView `json:"current_audio"`
}

type currentAudioView struct {
	SegmentType    string    `json:"segment_type"`
	FilePath       string    `json:"file_path"`
	StartedAt      time.Time `json:"started_at"`
	Title          string    `json:"title,omitempty"`
	Artist         string    `json:"artist,omitempty"`
	DurationSec    float64   `json:"duration_sec"`
	SegmentClass   string    `json:"segment_class,omitempty"`
	SegmentRole    string    `json:"segment_role,omitempty"`
	ProductionType string    `json:"production_type,omitempty"`
}

// NewStateHandler returns the /station/state handler reading pub's current
// snapshot. The handler never blocks the playout thread: Get is a lock-free
// atomic load.
func NewStateHandler(pub *stationstate.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := pub.Get()
		resp := stateResponse{StationState: string(snap.State), Since: snap.Since}
		if snap.CurrentAudio.Ok {
			a := snap.CurrentAudio
			view := &currentAudioView{
				SegmentType: a.SegmentType,
				FilePath:    a.FilePath,
				StartedAt:   a.StartedAt,
				Title:       a.Title,
				Artist:      a.Artist,
				DurationSec: a.DurationSec,
			}
			if a.HasSegmentDetails {
				view.SegmentClass = string(a.SegmentClass)
				view.SegmentRole = string(a.SegmentRole)
				view.ProductionType = string(a.ProductionType)
			}
			resp.CurrentAudio = view
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Emitter forwards Station's advisory events to Tower over HTTP. Emit
// never blocks the caller beyond a bounded timeout and never retries —
// events are edge-triggered and advisory, losing one is acceptable,
// stalling the caller on one is not.
type Emitter struct {
	towerIngestURL string
	client         *http.Client
}

// NewEmitter builds an Emitter posting to towerIngestURL (Tower's
// /tower/events/ingest).
func NewEmitter(towerIngestURL string) *Emitter {
	return &Emitter{towerIngestURL: towerIngestURL, client: httpclient.Default()}
}

// Emit posts ev as JSON in a background goroutine so the caller (a
// playout-thread handler) never waits on Tower's response.
func (e *Emitter) Emit(ev events.Event) {
	go e.emitSync(ev)
}

func (e *Emitter) emitSync(ev events.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("stationhttp: marshal event %s: %v", ev.Type, err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, e.towerIngestURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("stationhttp: build request for event %s: %v", ev.Type, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("stationhttp: emit %s failed (dropped): %v", ev.Type, err)
		return
	}
	_ = resp.Body.Close()
}
