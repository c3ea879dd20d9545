package sourcegraph

import (
	"math"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

const (
	toneHz        = 440.0
	toneAmplitude = 0.2 // fixed amplitude, well below full scale to avoid clipping on output chains
)

// ToneNode emits a phase-continuous 440Hz sine wave, last resort before
// silence (and the fallback target whenever an active node returns empty
// mid-tick). The phase accumulator carries across frames so there is never
// an audible click at a frame boundary.
type ToneNode struct {
	phase     float64
	increment float64
}

// NewToneNode returns a ToneNode for the canonical sample rate.
func NewToneNode() *ToneNode {
	return &ToneNode{increment: 2 * math.Pi * toneHz / pcmframe.SampleRate}
}

func (t *ToneNode) Name() string { return "tone" }

// NextFrame always succeeds: tone is one of the two sources (with silence)
// guaranteed to never return empty.
func (t *ToneNode) NextFrame() (pcmframe.Frame, bool) {
	var f pcmframe.Frame
	const scale = 32767.0 * toneAmplitude
	for i := 0; i < pcmframe.SamplesPerFrame; i++ {
		s := int16(math.Sin(t.phase) * scale)
		off := i * pcmframe.Channels * pcmframe.BytesPerSample
		putSampleLE(f[off:], s)
		putSampleLE(f[off+pcmframe.BytesPerSample:], s)
		t.phase += t.increment
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return f, true
}

func putSampleLE(b []byte, s int16) {
	b[0] = byte(uint16(s))
	b[1] = byte(uint16(s) >> 8)
}
