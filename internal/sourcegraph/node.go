// Package sourcegraph implements Tower's set of possible PCM producers and
// the selection policy among them. Exactly one node is active
// per tick. Nodes are a tagged sum — Program | GraceSilence | File | Tone |
// Silence | Override — with polymorphism limited to the uniform NextFrame
// contract; there is no other shared behavior between node kinds.
package sourcegraph

import "github.com/retrowaves/retrowaves/internal/pcmframe"

// Node is the uniform contract every source-graph producer satisfies.
// NextFrame must never block on I/O, locks held by another tick, or
// subprocess calls — anything that could take longer than a tick must be
// done off-tick and its result handed to the node beforehand.
type Node interface {
	// NextFrame returns the next PCM frame, or ok=false if this node has
	// nothing to offer this tick (the caller falls back to tone).
	NextFrame() (pcmframe.Frame, bool)
	// Name identifies the node for /status and the override stack listing.
	Name() string
}
