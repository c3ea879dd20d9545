package clock

import "time"

// TickerB drives Tower's strict absolute-schedule tick (21.333ms nominal).
// Its schedule is independent of Station liveness, ring-buffer depth,
// encoder health, and client count — callers must never make Advance
// depend on any of those.
type TickerB struct {
	frameDuration time.Duration
	nextTick      time.Time
	jitter        time.Duration
	started       bool
}

// NewTickerB returns a TickerB. jitter is the small tolerance before a late
// tick triggers a resync.
func NewTickerB(frameDuration, jitter time.Duration) *TickerB {
	return &TickerB{frameDuration: frameDuration, jitter: jitter}
}

// Start anchors the schedule at now.
func (t *TickerB) Start(now time.Time) {
	t.nextTick = now.Add(t.frameDuration)
	t.started = true
}

// Advance computes the sleep duration until the next tick and advances the
// schedule by one frame duration. If now has drifted past next_tick+jitter,
// it resyncs next_tick to now (catching up) and reports resynced=true so
// the caller can log the violation.
func (t *TickerB) Advance(now time.Time) (sleep time.Duration, resynced bool) {
	if !t.started {
		t.Start(now)
		return t.frameDuration, false
	}
	if now.Sub(t.nextTick) > t.jitter {
		t.nextTick = now
		resynced = true
	}
	sleep = t.nextTick.Sub(now)
	if sleep < 0 {
		sleep = 0
	}
	t.nextTick = t.nextTick.Add(t.frameDuration)
	return sleep, resynced
}
