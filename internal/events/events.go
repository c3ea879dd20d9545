// Package events defines the closed Station-to-Tower event schema.
// Events are edge-triggered and advisory; there are no "clear" events,
// and absence of an event never implies absence of state — the
// authoritative signal is always a state query (stationstate, Tower
// supervisor mode), never event history.
package events

import "time"

// Type is the closed set of event types Tower's ingest endpoint accepts.
type Type string

const (
	TypeStationStartup   Type = "station_startup"
	TypeSongPlaying      Type = "song_playing"
	TypeSegmentPlaying   Type = "segment_playing"
	TypeStationShutdown  Type = "station_shutdown"
	TypeDJThinkStarted   Type = "dj_think_started"
	TypeDJThinkCompleted Type = "dj_think_completed"
	TypeStationUnderflow Type = "station_underflow"
	TypeStationOverflow  Type = "station_overflow"
	TypeDecodeClockSkew  Type = "decode_clock_skew"
)

// Valid reports whether t is one of the closed set Tower accepts.
func Valid(t Type) bool {
	switch t {
	case TypeStationStartup, TypeSongPlaying, TypeSegmentPlaying, TypeStationShutdown,
		TypeDJThinkStarted, TypeDJThinkCompleted, TypeStationUnderflow, TypeStationOverflow,
		TypeDecodeClockSkew:
		return true
	default:
		return false
	}
}

// SegmentClass is segment_playing's segment_class field, a closed set.
type SegmentClass string

const (
	SegmentClassStationID    SegmentClass = "station_id"
	SegmentClassDJTalk       SegmentClass = "dj_talk"
	SegmentClassPromo        SegmentClass = "promo"
	SegmentClassImaging      SegmentClass = "imaging"
	SegmentClassRadioDrama   SegmentClass = "radio_drama"
	SegmentClassAlbumSegment SegmentClass = "album_segment"
	SegmentClassEmergency    SegmentClass = "emergency"
	SegmentClassSpecial      SegmentClass = "special"
)

// SegmentRole is segment_playing's segment_role field, a closed set.
type SegmentRole string

const (
	SegmentRoleIntro        SegmentRole = "intro"
	SegmentRoleOutro        SegmentRole = "outro"
	SegmentRoleInterstitial SegmentRole = "interstitial"
	SegmentRoleTopOfHour    SegmentRole = "top_of_hour"
	SegmentRoleLegal        SegmentRole = "legal"
	SegmentRoleTransition   SegmentRole = "transition"
	SegmentRoleStandalone   SegmentRole = "standalone"
)

// ProductionType is segment_playing's production_type field, a closed set.
type ProductionType string

const (
	ProductionLiveDJ       ProductionType = "live_dj"
	ProductionVoiceTracked ProductionType = "voice_tracked"
	ProductionProduced     ProductionType = "produced"
	ProductionSystem       ProductionType = "system"
)

func validSegmentClass(c SegmentClass) bool {
	switch c {
	case SegmentClassStationID, SegmentClassDJTalk, SegmentClassPromo, SegmentClassImaging,
		SegmentClassRadioDrama, SegmentClassAlbumSegment, SegmentClassEmergency, SegmentClassSpecial:
		return true
	}
	return false
}

func validSegmentRole(r SegmentRole) bool {
	switch r {
	case SegmentRoleIntro, SegmentRoleOutro, SegmentRoleInterstitial, SegmentRoleTopOfHour,
		SegmentRoleLegal, SegmentRoleTransition, SegmentRoleStandalone:
		return true
	}
	return false
}

func validProductionType(p ProductionType) bool {
	switch p {
	case ProductionLiveDJ, ProductionVoiceTracked, ProductionProduced, ProductionSystem:
		return true
	}
	return false
}

// SongMetadata carries full song metadata for a song_playing event.
type SongMetadata struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Event is one Station->Tower event. Metadata is a free-form map whose keys
// depend on the event's Type; the NewX constructors below fill in the keys
// for each Type (the JSON shape itself does not enforce them).
type Event struct {
	Type      Type           `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"` // Station's monotonic-derived wall clock at emission
	Metadata  map[string]any `json:"metadata"`
}

// NewStationStartup returns a station_startup event with empty metadata.
func NewStationStartup(ts time.Time) Event {
	return Event{Type: TypeStationStartup, Timestamp: ts, Metadata: map[string]any{}}
}

// NewStationShutdown returns a station_shutdown event with empty metadata.
func NewStationShutdown(ts time.Time) Event {
	return Event{Type: TypeStationShutdown, Timestamp: ts, Metadata: map[string]any{}}
}

// NewSongPlaying returns a song_playing event carrying full song metadata.
func NewSongPlaying(ts time.Time, md SongMetadata) Event {
	return Event{Type: TypeSongPlaying, Timestamp: ts, Metadata: map[string]any{
		"title": md.Title, "artist": md.Artist, "album": md.Album, "duration_ms": md.DurationMs,
	}}
}

// NewSegmentPlaying returns a segment_playing event. Returns ok=false if
// class/role/production are outside their closed sets.
func NewSegmentPlaying(ts time.Time, class SegmentClass, role SegmentRole, production ProductionType) (Event, bool) {
	if !validSegmentClass(class) || !validSegmentRole(role) || !validProductionType(production) {
		return Event{}, false
	}
	return Event{Type: TypeSegmentPlaying, Timestamp: ts, Metadata: map[string]any{
		"segment_class": class, "segment_role": role, "production_type": production,
	}}, true
}

// NewUnderflow/NewOverflow/NewDecodeClockSkew are advisory telemetry events;
// metadata is caller-supplied free-form detail (e.g. ring fill ratio).
func NewUnderflow(ts time.Time, metadata map[string]any) Event {
	return Event{Type: TypeStationUnderflow, Timestamp: ts, Metadata: metadata}
}

func NewOverflow(ts time.Time, metadata map[string]any) Event {
	return Event{Type: TypeStationOverflow, Timestamp: ts, Metadata: metadata}
}

func NewDJThinkStarted(ts time.Time, intentID string) Event {
	return Event{Type: TypeDJThinkStarted, Timestamp: ts, Metadata: map[string]any{"intent_id": intentID}}
}

func NewDJThinkCompleted(ts time.Time, intentID string) Event {
	return Event{Type: TypeDJThinkCompleted, Timestamp: ts, Metadata: map[string]any{"intent_id": intentID}}
}

func NewDecodeClockSkew(ts time.Time, skewMs float64) Event {
	return Event{Type: TypeDecodeClockSkew, Timestamp: ts, Metadata: map[string]any{"skew_ms": skewMs}}
}
