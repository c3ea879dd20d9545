// Package clock implements Station's Clock A (wall-clock-paced decode
// metronome) and Tower's Clock B (strict transmit tick), plus the optional
// PID controller that adjusts Clock A's sleep without ever touching segment
// timing. The two clocks never observe each other directly; Clock A may
// read Tower buffer telemetry only through the PID, and even then the
// adjustment is additive sleep, never a segment-duration input.
package clock

import "time"

// PacerA paces Station's decode loop: for each decoded frame, sleep until
// next_frame_time, then advance next_frame_time by FrameDuration. It never
// observes Tower state; segment elapsed time is always computed externally
// from wall-clock reads (now - segment_start), never from this pacer.
type PacerA struct {
	frameDuration time.Duration
	nextFrameTime time.Time
	started       bool
}

// NewPacerA returns a PacerA for the given nominal frame duration.
func NewPacerA(frameDuration time.Duration) *PacerA {
	return &PacerA{frameDuration: frameDuration}
}

// Start anchors the pacer's schedule at now. Call once per segment (or
// decoder instance); subsequent SleepFor calls advance relative to this anchor.
func (p *PacerA) Start(now time.Time) {
	p.nextFrameTime = now.Add(p.frameDuration)
	p.started = true
}

// SleepFor returns how long the caller should sleep before producing the
// next frame, given now and an additive adjustment (0 when the PID is
// disabled). It never returns negative; advances the internal schedule
// regardless of what the caller does with the duration.
func (p *PacerA) SleepFor(now time.Time, adjustment time.Duration) time.Duration {
	if !p.started {
		p.Start(now)
	}
	target := p.nextFrameTime.Add(adjustment)
	p.nextFrameTime = p.nextFrameTime.Add(p.frameDuration)
	d := target.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Reset re-anchors the schedule, used when a new decoder/segment begins
// (pre-fill exit, segment start) without carrying forward drift from a
// previous segment.
func (p *PacerA) Reset() {
	p.started = false
}
