// Package bridge implements the Unix domain socket link carrying Station's
// decoded PCM to Tower: one fixed-size frame at a time, non-blocking on
// the Station side, tolerant of Tower being absent or restarting.
package bridge

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

// ReconnectInterval is how often Station retries connecting to Tower's
// socket while disconnected.
const ReconnectInterval = 1 * time.Second

// Sender is the Station side of the bridge. Send is always non-blocking:
// if Tower isn't connected, or the kernel socket buffer is full, the frame
// is dropped rather than stalling the decode pacer.
type Sender struct {
	socketPath string

	mu      sync.Mutex
	conn    net.Conn
	closing chan struct{}
	once    sync.Once
}

// NewSender starts the background connect/reconnect loop against
// socketPath and returns immediately; the first frames may be dropped
// until a connection is established.
func NewSender(socketPath string) *Sender {
	s := &Sender{socketPath: socketPath, closing: make(chan struct{})}
	go s.connectLoop()
	return s
}

// Send writes one PCM frame if currently connected. Never blocks: a dial
// in progress, a full socket buffer, or a severed connection all simply
// drop the frame.
func (s *Sender) Send(f pcmframe.Frame) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Millisecond))
	if _, err := conn.Write(f[:]); err != nil {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}
}

// Connected reports whether the bridge currently has a live connection.
func (s *Sender) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close stops the reconnect loop and closes any live connection.
func (s *Sender) Close() {
	s.once.Do(func() { close(s.closing) })
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Sender) connectLoop() {
	for {
		select {
		case <-s.closing:
			return
		default:
		}
		conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if err != nil {
			select {
			case <-s.closing:
				return
			case <-time.After(ReconnectInterval):
			}
			continue
		}
		log.Printf("bridge: connected to tower at %s", s.socketPath)
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		// Block here until the connection drops, then loop to reconnect.
		s.waitForDisconnect(conn)
	}
}

// waitForDisconnect blocks by attempting tiny reads on the (write-only in
// practice) connection; a read error or EOF means Tower went away.
func (s *Sender) waitForDisconnect(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		select {
		case <-s.closing:
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		_, err := conn.Read(buf)
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			s.mu.Lock()
			stillCurrent := s.conn == conn
			s.mu.Unlock()
			if !stillCurrent {
				return
			}
			continue
		}
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
		log.Printf("bridge: disconnected from tower: %v", err)
		return
	}
}
