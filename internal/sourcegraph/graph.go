package sourcegraph

import (
	"sync"
	"time"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

const (
	// ProgramAdmissionThreshold is the number of consecutive valid Program
	// pops required before Program PCM is considered admitted and broadcast
	// to clients.
	ProgramAdmissionThreshold = 3

	// GraceWindow is how long Program silence (not file/tone) is emitted
	// after previously-admitted Program PCM disappears, before the walk
	// falls through to File/Tone/Silence.
	GraceWindow = 1500 * time.Millisecond
)

// ActiveSource names what a Graph tick most recently selected, for /status.
type ActiveSource string

const (
	SourceOverride ActiveSource = "override"
	SourceProgram  ActiveSource = "program"
	SourceGrace    ActiveSource = "grace_silence"
	SourceFile     ActiveSource = "file"
	SourceTone     ActiveSource = "tone"
	SourceSilence  ActiveSource = "silence"
)

// Graph selects exactly one PCM producer per tick, walking overrides,
// then the admitted Program source (with its grace window on loss), then a
// swappable primary fallback, then tone, then silence. Admission and grace
// state live here rather than on ProgramNode because they describe the
// selection policy, not the buffer itself.
type Graph struct {
	mu sync.Mutex

	program   *ProgramNode
	overrides *OverrideStack
	primary   Node // swappable via set_primary; defaults to fileOrNil
	tone      Node
	silence   Node

	consecutiveValid int
	admitted         bool
	graceUntil       time.Time // zero means not in grace

	now func() time.Time

	lastActive ActiveSource
}

// NewGraph builds a Graph over the given program ring-fed node and override
// stack, with the fallback chain primary (may be nil) -> tone -> silence.
func NewGraph(program *ProgramNode, overrides *OverrideStack, primary Node) *Graph {
	return &Graph{
		program:   program,
		overrides: overrides,
		primary:   primary,
		tone:      NewToneNode(),
		silence:   SilenceNode{},
		now:       time.Now,
	}
}

// SetPrimary replaces the fallback-before-tone node (POST /control/source
// {"set_primary": name}). Passing nil disables the file
// fallback and drops straight to tone when Program is unavailable.
func (g *Graph) SetPrimary(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primary = n
}

// LastActive reports which source the most recent NextFrame call selected.
func (g *Graph) LastActive() ActiveSource {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastActive
}

// PrimaryName reports the currently configured primary (file-or-nil)
// fallback node's name, for /status. Returns "" when no primary is set.
func (g *Graph) PrimaryName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.primary == nil {
		return ""
	}
	return g.primary.Name()
}

// Overrides exposes the override stack for /status's newest-first listing
// and for the control-plane push/pop handlers.
func (g *Graph) Overrides() *OverrideStack { return g.overrides }

// NextFrame runs one priority-walk tick: override stack, then Program (with
// admission gating and grace-on-loss), then primary, then tone, then
// silence. An active node returning empty mid-tick falls back to tone
// without touching the override stack, so a stalled override doesn't get
// silently popped.
func (g *Graph) NextFrame() pcmframe.Frame {
	g.mu.Lock()
	defer g.mu.Unlock()

	if top, ok := g.overrides.Peek(); ok {
		if f, ok := top.NextFrame(); ok {
			g.lastActive = SourceOverride
			return f
		}
		// Override stalled this tick: fall back to tone, leave the stack
		// untouched so the next tick tries the same override again.
		g.lastActive = SourceTone
		f, _ := g.tone.NextFrame()
		return f
	}

	if f, ok := g.program.NextFrame(); ok {
		g.consecutiveValid++
		if g.consecutiveValid >= ProgramAdmissionThreshold {
			g.admitted = true
		}
		if g.admitted {
			g.graceUntil = time.Time{}
			g.lastActive = SourceProgram
			return f
		}
		// Not yet admitted: treat like any pre-admission gap below.
	} else {
		g.consecutiveValid = 0
		if g.admitted {
			g.admitted = false
			g.graceUntil = g.now().Add(GraceWindow)
		}
	}

	if !g.graceUntil.IsZero() && g.now().Before(g.graceUntil) {
		g.lastActive = SourceGrace
		f, _ := GraceSilenceNode{}.NextFrame()
		return f
	}
	g.graceUntil = time.Time{}

	if g.primary != nil {
		if f, ok := g.primary.NextFrame(); ok {
			g.lastActive = SourceFile
			return f
		}
	}

	if f, ok := g.tone.NextFrame(); ok {
		g.lastActive = SourceTone
		return f
	}

	g.lastActive = SourceSilence
	f, _ := g.silence.NextFrame()
	return f
}
