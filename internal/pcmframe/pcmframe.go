// Package pcmframe defines the fixed atomic PCM unit that crosses the UDS
// bridge between Station and Tower: 1024 samples, 2 channels, 16-bit
// little-endian signed, 48kHz canonical rate.
package pcmframe

import "time"

const (
	// SampleRate is the canonical PCM sample rate in Hz.
	SampleRate = 48000
	// Channels is the fixed channel count (stereo).
	Channels = 2
	// SamplesPerFrame is the fixed sample count per frame, per channel.
	SamplesPerFrame = 1024
	// BytesPerSample is the width of one signed 16-bit LE sample.
	BytesPerSample = 2
	// Size is the fixed byte length of one PCM frame: 1024*2*2 = 4096.
	Size = SamplesPerFrame * Channels * BytesPerSample
	// Duration is the nominal wall-clock duration of one frame: 1024/48000s ~= 21.333ms.
	Duration = time.Second * SamplesPerFrame / SampleRate
)

// Frame is one opaque 4096-byte PCM unit. Neither Station nor Tower
// interprets the samples except the fallback tone generator and the
// silence source; it is otherwise moved as raw bytes.
type Frame [Size]byte

// Zero is a frame of digital silence, safe to use as a shared value since
// Frame is a value type (copying it copies the zero bytes).
var Zero Frame

// Pad returns a Size-length frame built from b, zero-padding any shortfall.
// The playout decoder does not use it: a trailing partial frame is dropped.
func Pad(b []byte) Frame {
	var f Frame
	copy(f[:], b)
	return f
}
