package playout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/scheduler"
)

// PrefillTargetRatio default and bounds: pre-fill runs until
// the buffer ratio reaches this target, or one of the time/frame caps below
// fires first.
const (
	DefaultPrefillTargetRatio = 0.5
	DefaultPrefillMaxDuration = 5 * time.Second
	PrefillMaxFrames          = 470
)

// DefaultTelemetryPollInterval is how often the paced loop re-reads Tower's
// buffer ratio for the PID. Between polls
// the last computed adjustment is reused; the Clock-A base pacing itself is
// unaffected.
const DefaultTelemetryPollInterval = 500 * time.Millisecond

// DefaultPrefillPollInterval bounds how often the pre-fill burst re-checks
// the buffer ratio for its exit condition; the burst itself is unpaced.
const DefaultPrefillPollInterval = 1 * time.Second

// Sender is the bridge side PlayoutEngine sends decoded frames to. Matches
// bridge.Sender's Send method without importing it directly, so tests can
// substitute a recorder.
type Sender interface {
	Send(pcmframe.Frame)
}

// RatioSource reports Tower's current PCM buffer fill ratio. ok=false means
// Tower was unreachable for this poll (bounded-timeout failure), in which
// case PlayoutEngine skips pre-fill exit checks and PID adjustment for that
// frame and falls back to Clock A's base pacing.
type RatioSource interface {
	Ratio() (ratio float64, ok bool)
}

// Config bundles PlayoutEngine's fixed collaborators.
type Config struct {
	NewCmd DecoderCommand
	Sender Sender
	Pacer  *clock.PacerA
	PID    *clock.PID  // nil disables adaptive pacing
	Ratio  RatioSource // nil disables both pre-fill and PID

	Prefill               bool
	PrefillTargetRatio    float64
	PrefillMaxDuration    time.Duration
	PrefillPollInterval   time.Duration
	TelemetryPollInterval time.Duration

	OnSegmentStarted  func(scheduler.AudioEvent, time.Time)
	OnSegmentFinished func(scheduler.AudioEvent, time.Time)

	// OnBufferUnderflow/OnBufferOverflow fire edge-triggered when a
	// telemetry poll first observes Tower's ring empty (or full) during a
	// segment. Advisory; both may be nil.
	OnBufferUnderflow func(ratio float64, at time.Time)
	OnBufferOverflow  func(ratio float64, at time.Time)

	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.PrefillTargetRatio <= 0 {
		c.PrefillTargetRatio = DefaultPrefillTargetRatio
	}
	if c.PrefillMaxDuration <= 0 {
		c.PrefillMaxDuration = DefaultPrefillMaxDuration
	}
	if c.PrefillPollInterval <= 0 {
		c.PrefillPollInterval = DefaultPrefillPollInterval
	}
	if c.TelemetryPollInterval <= 0 {
		c.TelemetryPollInterval = DefaultTelemetryPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine owns the single live decoder subprocess and drives it through one
// AudioEvent at a time in the order DO enqueued them.
type Engine struct {
	cfg   Config
	queue chan scheduler.AudioEvent

	mu           sync.Mutex
	current      *scheduler.AudioEvent
	segmentSince time.Time
}

// queueDepth is generous headroom: DO must never block, and a DJIntent
// contributes at most a handful of AudioEvents at a time.
const queueDepth = 64

// New builds an Engine. Call Run in its own goroutine to start consuming
// the queue; Enqueue implements scheduler.PlayoutQueue.
func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg, queue: make(chan scheduler.AudioEvent, queueDepth)}
}

// Enqueue appends ev to the playout queue without blocking. If the queue is
// already full (a sign something upstream is stuck) the event is dropped
// and logged rather than stalling DO.
func (e *Engine) Enqueue(ev scheduler.AudioEvent) {
	select {
	case e.queue <- ev:
	default:
		log.Printf("playout: queue full, dropping segment %q", ev.FilePath)
	}
}

// CurrentSegment reports the AudioEvent presently decoding and when it
// started, for stationstate's current_audio field. ok=false between
// segments.
func (e *Engine) CurrentSegment() (scheduler.AudioEvent, time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return scheduler.AudioEvent{}, time.Time{}, false
	}
	return *e.current, e.segmentSince, true
}

// PlaySegment runs ev directly as the active segment, bypassing the playout
// queue entirely, and blocks until it finishes (EOF or ctx cancellation).
// Used for the startup announcement, which is injected directly as the
// active segment rather than enqueued via DO —
// OnSegmentStarted/OnSegmentFinished still fire around it exactly as they
// would for a queued segment.
func (e *Engine) PlaySegment(ctx context.Context, ev scheduler.AudioEvent) {
	e.runSegment(ctx, ev)
}

// Run drains the queue, playing one segment at a time, until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.queue:
			e.runSegment(ctx, ev)
		}
	}
}

// failedSegmentBackoff is slept after a segment whose decoder could not
// start, so a queue of unplayable events can't hot-spin the engine.
const failedSegmentBackoff = 500 * time.Millisecond

func (e *Engine) runSegment(ctx context.Context, ev scheduler.AudioEvent) {
	var offsetMs int64
	if ev.StartOffsetMs != nil {
		offsetMs = *ev.StartOffsetMs
	}
	dec, err := startDecoder(e.cfg.NewCmd, ev.FilePath, offsetMs)
	if err != nil {
		log.Printf("playout: could not start decoder for %s: %v", ev.FilePath, err)
		// The segment still ran, zero-length, as far as lifecycle consumers
		// are concerned: the scheduler counts every enqueued event's finish
		// to know when the current intent cycle is over.
		at := e.cfg.Now()
		if e.cfg.OnSegmentStarted != nil {
			e.cfg.OnSegmentStarted(ev, at)
		}
		if e.cfg.OnSegmentFinished != nil {
			e.cfg.OnSegmentFinished(ev, at)
		}
		sleepCtx(ctx, failedSegmentBackoff)
		return
	}
	defer dec.stop()

	segmentStart := e.cfg.Now()
	e.mu.Lock()
	cp := ev
	e.current = &cp
	e.segmentSince = segmentStart
	e.mu.Unlock()
	if e.cfg.OnSegmentStarted != nil {
		e.cfg.OnSegmentStarted(ev, segmentStart)
	}

	e.cfg.Pacer.Reset()
	if e.cfg.PID != nil {
		e.cfg.PID.Reset()
	}

	framesSent := e.prefill(ctx, dec)
	e.pacedLoop(ctx, dec, framesSent)

	if e.cfg.OnSegmentFinished != nil {
		e.cfg.OnSegmentFinished(ev, e.cfg.Now())
	}
	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
}

// prefill sends decoded frames with no Clock-A sleep until the buffer
// reaches target, the configured burst timeout elapses, or 470 frames are
// sent — whichever comes first. It never changes segment_start; wall-clock
// segment timing is tracked entirely outside this method.
func (e *Engine) prefill(ctx context.Context, dec *decoder) int {
	if !e.cfg.Prefill || e.cfg.Ratio == nil {
		return 0
	}
	ratio, ok := e.cfg.Ratio.Ratio()
	if !ok || ratio >= e.cfg.PrefillTargetRatio {
		return 0
	}

	start := time.Now()
	lastPoll := start
	sent := 0
	for sent < PrefillMaxFrames && time.Since(start) < e.cfg.PrefillMaxDuration {
		if ctxDone(ctx) {
			return sent
		}
		f, ok := dec.nextFrame()
		if !ok {
			return sent
		}
		e.cfg.Sender.Send(f)
		sent++
		if time.Since(lastPoll) < e.cfg.PrefillPollInterval {
			continue
		}
		lastPoll = time.Now()
		if r, ok := e.cfg.Ratio.Ratio(); ok && r >= e.cfg.PrefillTargetRatio {
			break
		}
	}
	return sent
}

// pacedLoop runs normal Clock-A-paced decode (optionally PID-adjusted)
// until the decoder reaches EOF or ctx is cancelled.
func (e *Engine) pacedLoop(ctx context.Context, dec *decoder, alreadySent int) {
	var lastPoll time.Time
	var adjustment time.Duration
	var lowEdge, highEdge bool
	for {
		if ctxDone(ctx) {
			return
		}
		f, ok := dec.nextFrame()
		if !ok {
			return
		}
		e.cfg.Sender.Send(f)

		if e.cfg.Ratio != nil {
			now := time.Now()
			if lastPoll.IsZero() || now.Sub(lastPoll) >= e.cfg.TelemetryPollInterval {
				var dt time.Duration
				if !lastPoll.IsZero() {
					dt = now.Sub(lastPoll)
				}
				if ratio, ok := e.cfg.Ratio.Ratio(); ok {
					e.observeRatioEdges(ratio, now, &lowEdge, &highEdge)
					if e.cfg.PID != nil {
						adjustment = e.cfg.PID.Next(ratio, dt) - e.pidBase()
					}
				} else if e.cfg.PID != nil {
					e.cfg.PID.Reset()
					adjustment = 0
				}
				lastPoll = now
			}
		}

		sleep := e.cfg.Pacer.SleepFor(time.Now(), adjustment)
		if sleep <= 0 {
			continue
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// observeRatioEdges fires the underflow/overflow callbacks on the first
// poll that sees Tower's ring empty or full, then arms again only after the
// ratio has left that zone — one event per excursion, not one per poll.
func (e *Engine) observeRatioEdges(ratio float64, at time.Time, lowEdge, highEdge *bool) {
	const full = 0.999
	switch {
	case ratio <= 0:
		if !*lowEdge && e.cfg.OnBufferUnderflow != nil {
			e.cfg.OnBufferUnderflow(ratio, at)
		}
		*lowEdge = true
	case ratio >= full:
		if !*highEdge && e.cfg.OnBufferOverflow != nil {
			e.cfg.OnBufferOverflow(ratio, at)
		}
		*highEdge = true
	default:
		*lowEdge = false
		*highEdge = false
	}
}

// pidBase lets pacedLoop treat PID.Next's return (which already bundles in
// BaseFrameDuration) as a pure additive adjustment on top of Pacer's own
// nominal frame duration, avoiding double-counting the base.
func (e *Engine) pidBase() time.Duration {
	return pcmframe.Duration
}
