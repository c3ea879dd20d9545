// Package scheduler implements Station's THINK/DO segment scheduler: THINK
// decides what plays next without touching the queue or blocking; DO is a
// non-blocking enqueue of whatever THINK already prepared.
package scheduler

import "github.com/retrowaves/retrowaves/internal/events"

// AudioEvent is one playable unit: a resolved file path plus optional
// metadata. Immutable once created; consumed exactly once by DO or the
// playout thread.
type AudioEvent struct {
	FilePath      string
	GainDB        *float64
	StartOffsetMs *int64

	Title    string
	Artist   string
	Album    string
	Duration int64 // milliseconds; 0 if unknown

	IntentID string

	SegmentClass      events.SegmentClass
	SegmentRole       events.SegmentRole
	ProductionType    events.ProductionType
	HasSegmentDetails bool // true when the Class/Role/ProductionType triple applies (non-song segments)
}

// DJIntent bundles everything THINK decided for one upcoming segment
// sequence. Produced once in THINK, consumed exactly once in DO, then
// discarded — a DJIntent is never read twice.
type DJIntent struct {
	IntentID string

	NextSong AudioEvent

	Outro      *AudioEvent
	StationIDs []AudioEvent
	Intro      *AudioEvent

	HasLegalID bool
	Terminal   bool
}

// AudioEvents returns the intent's events in Station's required playout
// order: outro (if any), station IDs in order, intro (if any), next song.
func (i DJIntent) AudioEvents() []AudioEvent {
	out := make([]AudioEvent, 0, len(i.StationIDs)+3)
	if i.Outro != nil {
		out = append(out, *i.Outro)
	}
	out = append(out, i.StationIDs...)
	if i.Intro != nil {
		out = append(out, *i.Intro)
	}
	out = append(out, i.NextSong)
	return out
}
