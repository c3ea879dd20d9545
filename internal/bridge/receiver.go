package bridge

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
)

// Receiver is the Tower side of the bridge: it listens on a Unix domain
// socket, accepts Station's connection, reassembles the byte stream into
// fixed pcmframe.Size units, and pushes each complete frame into the PCM
// ingest ring buffer. Stray partial bytes left over after a disconnect are
// discarded rather than carried into the next connection, since a partial
// frame from a dead connection can never be completed.
type Receiver struct {
	socketPath string
	ring       *ringbuffer.PCMRing
	ln         net.Listener
	chunkSize  int
}

// socketMode is the bridge socket's file mode: rw for owner and group, no
// access for others. Owner/group themselves are whatever user/group this
// process runs as, since Tower and Station are expected to run under the
// same service account.
const socketMode = 0o660

// NewReceiver binds socketPath (removing any stale socket file left behind
// by a prior run) and returns a Receiver ready to Serve.
func NewReceiver(socketPath string, ring *ringbuffer.PCMRing) (*Receiver, error) {
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(socketPath, socketMode); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod bridge socket: %w", err)
	}
	return &Receiver{socketPath: socketPath, ring: ring, ln: ln, chunkSize: pcmframe.Size}, nil
}

// SetReadChunkSize overrides how many bytes each socket read requests
// (TOWER_READ_CHUNK_SIZE). Values below one frame are raised to one frame
// so reassembly can always make progress. Call before Serve.
func (r *Receiver) SetReadChunkSize(n int) {
	if n < pcmframe.Size {
		n = pcmframe.Size
	}
	r.chunkSize = n
}

// Serve accepts connections until Close is called, handling one Station
// connection at a time (only one Station process ever feeds a given
// Tower).
func (r *Receiver) Serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		log.Printf("bridge: station connected")
		r.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (r *Receiver) Close() error {
	err := r.ln.Close()
	_ = os.Remove(r.socketPath)
	return err
}

func (r *Receiver) handleConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		log.Printf("bridge: station disconnected")
	}()
	var pending []byte
	buf := make([]byte, r.chunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for len(pending) >= pcmframe.Size {
				var f pcmframe.Frame
				copy(f[:], pending[:pcmframe.Size])
				r.ring.Push(f)
				pending = pending[pcmframe.Size:]
			}
		}
		if err != nil {
			return
		}
	}
}
