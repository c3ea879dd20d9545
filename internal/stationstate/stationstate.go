// Package stationstate holds Station's single authoritative operational
// state record: one enum value, a monotonic "since", and a
// nullable current_audio snapshot. It is the only authoritative signal —
// events are advisory and never substitute for a state read.
package stationstate

import (
	"sync/atomic"
	"time"

	"github.com/retrowaves/retrowaves/internal/events"
)

// State is the closed set of Station's operational states.
type State string

const (
	StateStartingUp   State = "STARTING_UP"
	StateSongPlaying  State = "SONG_PLAYING"
	StateDJTalking    State = "DJ_TALKING"
	StateFallback     State = "FALLBACK"
	StateShuttingDown State = "SHUTTING_DOWN"
	StateError        State = "ERROR"
)

// CurrentAudio describes the segment presently playing. Zero value (Ok
// false) represents the null case, which is only valid when the owning
// Snapshot's State is StateError.
type CurrentAudio struct {
	Ok bool

	SegmentType string // "song" or "segment"
	FilePath    string
	StartedAt   time.Time
	Title       string
	Artist      string
	DurationSec float64

	HasSegmentDetails bool
	SegmentClass      events.SegmentClass
	SegmentRole       events.SegmentRole
	ProductionType    events.ProductionType
}

// Snapshot is one immutable, fully-formed state record. A reader receives
// a *Snapshot and can hold onto it indefinitely: nothing about an already
// published Snapshot ever mutates.
type Snapshot struct {
	State        State
	Since        time.Time
	CurrentAudio CurrentAudio
}

// Publisher holds the single current Snapshot behind an atomic pointer so
// Get is lock-free and Publish is wait-free from the playout thread's
// perspective — no reader can ever block a writer or vice versa.
type Publisher struct {
	current atomic.Pointer[Snapshot]
}

// NewPublisher returns a Publisher seeded at STARTING_UP with no current
// audio, since is recorded at construction time.
func NewPublisher(now time.Time) *Publisher {
	p := &Publisher{}
	p.current.Store(&Snapshot{State: StateStartingUp, Since: now})
	return p
}

// Get returns the current snapshot. Safe for any number of concurrent
// callers; never blocks.
func (p *Publisher) Get() Snapshot {
	return *p.current.Load()
}

// Publish swaps in a new snapshot wholesale. Callers (on_segment_started /
// on_segment_finished handlers) build the full Snapshot themselves so the
// swap is atomic and a reader never observes a half-updated record.
func (p *Publisher) Publish(s Snapshot) {
	p.current.Store(&s)
}

// TransitionTo publishes a new state with the given current_audio, stamping
// Since at now. state must be StateError for audio.Ok to be false; callers
// violating that invariant get exactly what they asked for (no silent
// correction), since a contract violation here is a programming error,
// not a runtime condition to paper over.
func (p *Publisher) TransitionTo(state State, audio CurrentAudio, now time.Time) {
	p.Publish(Snapshot{State: state, Since: now, CurrentAudio: audio})
}
