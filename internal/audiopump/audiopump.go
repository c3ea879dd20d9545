// Package audiopump drives Tower's Clock B tick loop: on each
// strict 21.333ms tick, pull exactly one PCM frame from the source graph
// and hand it to the encoder, independent of Station liveness, ring-buffer
// depth, encoder health, or client count. Nothing here may block longer
// than a tick; anything that could (file I/O, subprocess spawning, socket
// writes that return WOULDBLOCK) happens off-tick in its collaborators.
package audiopump

import (
	"context"
	"log"
	"time"

	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

// FrameSource supplies exactly one PCM frame per tick and never blocks.
// sourcegraph.Graph satisfies this.
type FrameSource interface {
	NextFrame() pcmframe.Frame
}

// Encoder receives the tick's PCM frame. WritePCM must itself be
// non-blocking (encoder.Manager's is): a full stdin pipe or a dead
// subprocess drops the frame rather than stalling the tick.
type Encoder interface {
	WritePCM(frame []byte)
}

// ResyncLogger lets the caller observe resync violations (e.g. via a
// logging.Sampler) without audiopump depending on that package's concrete
// type.
type ResyncLogger interface {
	Printf(site, format string, args ...any)
}

// Pump owns Tower's Clock B: a strict absolute-schedule tick that pulls one
// frame from source and writes it to encoder every FrameDuration, resyncing
// rather than accumulating drift when it falls behind.
type Pump struct {
	source  FrameSource
	encoder Encoder
	ticker  *clock.TickerB

	resyncLog ResyncLogger // set via SetResyncLogger; nil falls back to log.Printf
}

// resyncJitter is the small tolerance before a late tick triggers a logged
// resync rather than silent catch-up.
const resyncJitter = 5 * time.Millisecond

// New builds a Pump over source and encoder with the canonical 21.333ms
// frame duration and a small resync jitter tolerance.
func New(source FrameSource, encoder Encoder) *Pump {
	return &Pump{
		source:  source,
		encoder: encoder,
		ticker:  clock.NewTickerB(pcmframe.Duration, resyncJitter),
	}
}

// SetResyncLogger installs a sampled logger invoked whenever a tick falls
// far enough behind schedule to force a resync.
func (p *Pump) SetResyncLogger(l ResyncLogger) {
	p.resyncLog = l
}

// Run drives the tick loop until ctx is cancelled. Each iteration: pull one
// frame, write it to the encoder, then sleep to the next absolute
// deadline. Never sleeps on anything the encoder or source graph might be
// blocked on — TickerB.Advance is pure arithmetic over monotonic time.
func (p *Pump) Run(ctx context.Context) {
	p.ticker.Start(time.Now())
	for {
		if ctx.Err() != nil {
			return
		}

		frame := p.source.NextFrame()
		p.encoder.WritePCM(frame[:])

		sleep, resynced := p.ticker.Advance(time.Now())
		if resynced {
			if p.resyncLog != nil {
				p.resyncLog.Printf("audiopump.resync", "audiopump: tick fell behind schedule, resyncing")
			} else {
				log.Printf("audiopump: tick fell behind schedule, resyncing")
			}
		}
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
