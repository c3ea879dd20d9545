package sourcegraph

import (
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
)

// ProgramNode adapts the PCM ring buffer fed by the Station bridge into a
// Node. It has no admission or grace-window logic of its own — Graph layers
// that on top, since it is a property of the selection policy, not of the
// buffer.
type ProgramNode struct {
	ring *ringbuffer.PCMRing
}

// NewProgramNode wraps the ring buffer that the UDS bridge reader pushes
// Station's PCM into.
func NewProgramNode(ring *ringbuffer.PCMRing) *ProgramNode {
	return &ProgramNode{ring: ring}
}

func (p *ProgramNode) Name() string { return "program" }

// NextFrame pops the oldest buffered frame, or reports ok=false if the
// buffer is currently empty (Station bridge stalled or disconnected).
func (p *ProgramNode) NextFrame() (pcmframe.Frame, bool) {
	return p.ring.Pop()
}
