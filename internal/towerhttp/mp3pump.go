package towerhttp

import (
	"context"
	"time"
)

// mp3DrainInterval is how often the broadcaster checks the encoder's MP3
// output buffer for newly encoded frames. Short enough that a burst of
// frames (e.g. after a restart backfill) reaches listeners promptly, long
// enough not to spin: MP3 frames arrive at a variable VBR cadence, not a
// fixed tick, so this is a poll rather than a wait on a signal.
const mp3DrainInterval = 5 * time.Millisecond

// mp3Source is the subset of encoder.Manager the drain loop needs.
type mp3Source interface {
	NextMP3Frame() ([][]byte, bool)
}

// mp3Sink receives drained frames for fan-out; broadcast.Hub satisfies it.
type mp3Sink interface {
	Push(frame []byte)
}

// runMP3Drain pulls whatever MP3 frames the encoder has produced since the
// last poll and pushes each one, in order, to sink. Frame depth telemetry
// is read separately (status.go polls mp3buffer.Buffer.Depth() directly)
// since this loop fully drains the buffer every tick.
func runMP3Drain(ctx context.Context, source mp3Source, sink mp3Sink) {
	ticker := time.NewTicker(mp3DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frames, ok := source.NextMP3Frame()
			if !ok {
				continue
			}
			for _, f := range frames {
				sink.Push(f)
			}
		}
	}
}
