package sourcegraph

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

// maxFileSamples caps the in-memory decode at 10 minutes of canonical
// stereo 48kHz audio.
const maxFileSamples = 10 * 60 * pcmframe.SampleRate

// crossfadeSamples is the default linear crossfade region at the file
// loop boundary.
const crossfadeSamples = 2048

// FileNode serves a pre-decoded WAV file from memory. next_frame is pure
// array indexing with modulo arithmetic for the loop, plus a precomputed
// linear crossfade blending the last N samples with the first N — no I/O,
// locks, or subprocess calls on the frame path, matching the never-stall
// invariant.
type FileNode struct {
	path    string
	samples []int16 // interleaved stereo, i.e. len = 2*frameCount
	pos     int     // next sample-pair index to read
}

// LoadFileNode decodes a canonical 16-bit stereo 48kHz WAV file fully into
// memory and precomputes its loop-boundary crossfade. This is the only I/O
// the file source ever performs, and it happens once at load time (startup,
// or synchronously on the POST /control/source control-plane goroutine —
// never on the tick path).
func LoadFileNode(path string) (*FileNode, error) {
	samples, err := decodeWAVPCM16Stereo48k(path)
	if err != nil {
		return nil, fmt.Errorf("sourcegraph: load file node %q: %w", path, err)
	}
	if len(samples)/2 > maxFileSamples {
		samples = samples[:maxFileSamples*2]
	}
	applyLoopCrossfade(samples, crossfadeSamples)
	return &FileNode{path: path, samples: samples}, nil
}

func (f *FileNode) Name() string { return "file:" + f.path }

// NextFrame returns SamplesPerFrame stereo samples starting at f.pos,
// wrapping with modulo arithmetic when the file is shorter than the
// requested span. EOF is not a failure — the file simply loops.
func (f *FileNode) NextFrame() (pcmframe.Frame, bool) {
	frameCount := len(f.samples) / 2
	if frameCount == 0 {
		return pcmframe.Frame{}, false
	}
	var out pcmframe.Frame
	for i := 0; i < pcmframe.SamplesPerFrame; i++ {
		idx := (f.pos + i) % frameCount
		l := f.samples[idx*2]
		r := f.samples[idx*2+1]
		off := i * pcmframe.Channels * pcmframe.BytesPerSample
		putSampleLE(out[off:], l)
		putSampleLE(out[off+pcmframe.BytesPerSample:], r)
	}
	f.pos = (f.pos + pcmframe.SamplesPerFrame) % frameCount
	return out, true
}

// applyLoopCrossfade blends the last n sample-pairs of the buffer with a
// copy of the first n, linearly, so looping never produces an audible
// seam. Applied once at load time, never on the frame path.
func applyLoopCrossfade(samples []int16, n int) {
	frameCount := len(samples) / 2
	if frameCount == 0 || n <= 0 {
		return
	}
	if n > frameCount/2 {
		n = frameCount / 2
	}
	for i := 0; i < n; i++ {
		tailIdx := frameCount - n + i
		headL := samples[i*2]
		headR := samples[i*2+1]
		weight := float64(i) / float64(n) // 0 at tail start -> 1 at tail end
		for ch := 0; ch < 2; ch++ {
			tailVal := float64(samples[tailIdx*2+ch])
			headVal := float64(headL)
			if ch == 1 {
				headVal = float64(headR)
			}
			blended := tailVal*(1-weight) + headVal*weight
			samples[tailIdx*2+ch] = int16(blended)
		}
	}
}

// decodeWAVPCM16Stereo48k reads a canonical RIFF/WAVE file containing
// 16-bit little-endian PCM, 2 channels, 48kHz, and returns the interleaved
// samples. Hand-rolled rather than pulled from a dependency: this fixed,
// narrow format (the encoder's own canonical rate) doesn't warrant a
// general-purpose audio decoding library, and no library in the retrieved
// example pack is ever imported by application code for RIFF parsing
// (go-audio/riff appears only as another package's transitive indirect
// dependency, never exercised directly).
func decodeWAVPCM16Stereo48k(path string) ([]int16, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}
	var (
		channels   uint16
		sampleRate uint32
		bitsPerSmp uint16
		data       []byte
	)
	off := 12
	for off+8 <= len(b) {
		chunkID := string(b[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+chunkSize > len(b) {
			break
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short")
			}
			channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			bitsPerSmp = binary.LittleEndian.Uint16(b[body+14 : body+16])
		case "data":
			data = b[body : body+chunkSize]
		}
		off = body + chunkSize
		if chunkSize%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	if data == nil {
		return nil, fmt.Errorf("no data chunk")
	}
	if channels != 2 || sampleRate != pcmframe.SampleRate || bitsPerSmp != 16 {
		return nil, fmt.Errorf("unsupported format: channels=%d rate=%d bits=%d (need 2/%d/16)",
			channels, sampleRate, bitsPerSmp, pcmframe.SampleRate)
	}
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples, nil
}
