package mp3frame

// maxBufferBytes bounds the packetizer's internal byte buffer. On overflow
// the oldest bytes are discarded and the scanner resyncs from there, so a
// pathological input can never grow memory unboundedly.
const maxBufferBytes = 64 * 1024

// Packetizer is a stateful assembler turning encoder stdout byte chunks
// into complete MP3 frames. It never emits partial frames; Feed returns the
// (possibly empty) set of frames that became complete as a result of the
// new bytes. Complexity is O(N) in total bytes processed across the
// packetizer's lifetime; frames are emitted as slices into an internal
// buffer without a per-frame allocation beyond that slice.
type Packetizer struct {
	buf []byte
}

// NewPacketizer returns a ready-to-use Packetizer.
func NewPacketizer() *Packetizer {
	return &Packetizer{buf: make([]byte, 0, 4096)}
}

// Feed appends chunk to the internal buffer and extracts every complete
// frame now available. The returned slices alias the packetizer's internal
// buffer and are only valid until the next Feed call; callers that need to
// retain them must copy.
func (p *Packetizer) Feed(chunk []byte) [][]byte {
	p.buf = append(p.buf, chunk...)
	if len(p.buf) > maxBufferBytes {
		// Overflow: drop the oldest bytes and resync from there.
		drop := len(p.buf) - maxBufferBytes
		p.buf = p.buf[drop:]
	}

	var out [][]byte
	for {
		frame, consumed, ok := p.tryEmit()
		if !ok {
			break
		}
		if frame != nil {
			out = append(out, frame)
		}
		p.buf = p.buf[consumed:]
	}
	return out
}

// tryEmit scans p.buf for one complete frame starting at a valid sync word.
// Returns (frame, bytesConsumed, true) when a frame was emitted or bytes
// were dropped to resync (frame is nil in the drop case — caller loops
// again); returns (nil, 0, false) when more input is needed.
func (p *Packetizer) tryEmit() ([]byte, int, bool) {
	buf := p.buf
	if len(buf) < LenAtLeast {
		return nil, 0, false
	}
	idx := findSync(buf)
	if idx < 0 {
		// No sync anywhere in the buffer: keep the last 3 bytes (could be the
		// start of a split sync word) and drop the rest.
		if len(buf) > LenAtLeast {
			return nil, len(buf) - (LenAtLeast - 1), true
		}
		return nil, 0, false
	}
	if idx > 0 {
		// Drop garbage before the sync word and resync from there.
		return nil, idx, true
	}

	hdr, err := parseHeader(buf)
	if err != nil {
		// Impossible header: skip one byte and rescan.
		return nil, 1, true
	}
	if len(buf) < hdr.FrameLength {
		// Not enough bytes yet for this frame; wait for more.
		return nil, 0, false
	}
	// VBR: verify a follow-on sync exists immediately after this frame,
	// unless the buffer simply doesn't extend that far yet (wait, don't
	// reject — that's not malformed, just incomplete).
	next := hdr.FrameLength
	if len(buf) >= next+2 {
		if buf[next] != 0xFF || (buf[next+1]&0xE0) != 0xE0 {
			// Missing follow-on sync after a plausible frame: treat this
			// frame as bogus and resync one byte at a time.
			return nil, 1, true
		}
	}
	frame := buf[:hdr.FrameLength]
	return frame, hdr.FrameLength, true
}

// findSync returns the index of the first byte of a candidate 11-bit sync
// word (0xFF followed by a byte whose top three bits are all 1), or -1.
func findSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0xFF && (buf[i+1]&0xE0) == 0xE0 {
			return i
		}
	}
	return -1
}

// Reset clears all buffered bytes, discarding any partial frame. Used when
// the encoder restarts so stale bytes from the previous process never blend
// into the new stream.
func (p *Packetizer) Reset() {
	p.buf = p.buf[:0]
}

// Buffered returns the number of bytes currently held awaiting a complete
// frame (observability only).
func (p *Packetizer) Buffered() int {
	return len(p.buf)
}
