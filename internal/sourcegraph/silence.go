package sourcegraph

import "github.com/retrowaves/retrowaves/internal/pcmframe"

// SilenceNode is the last-resort source: always returns a frame of digital
// zero, never empty.
type SilenceNode struct{}

func (SilenceNode) Name() string { return "silence" }

func (SilenceNode) NextFrame() (pcmframe.Frame, bool) { return pcmframe.Zero, true }

// GraceSilenceNode is silence emitted specifically during the grace window
// after Program PCM is lost, when only silence — not file/tone — may play.
// It is behaviorally identical to SilenceNode; kept as a
// distinct type so /status can report the grace state as its own named
// source rather than conflating it with the true last-resort silence path.
type GraceSilenceNode struct{}

func (GraceSilenceNode) Name() string { return "grace_silence" }

func (GraceSilenceNode) NextFrame() (pcmframe.Frame, bool) { return pcmframe.Zero, true }
