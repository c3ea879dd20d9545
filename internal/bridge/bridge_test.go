package bridge

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
)

func TestSenderSendIsNoOpWhenDisconnected(t *testing.T) {
	s := &Sender{socketPath: "/nonexistent/socket", closing: make(chan struct{})}
	// Must not panic or block even with no live connection.
	s.Send(pcmframe.Frame{})
	if s.Connected() {
		t.Fatal("expected not connected")
	}
}

func TestReceiverAssemblesFixedSizeFrames(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "bridge.sock")
	ring := ringbuffer.New(8)

	recv, err := NewReceiver(socketPath, ring)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	defer recv.Close()
	go recv.Serve()

	// Give the listener a moment to be ready, then dial in.
	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frame pcmframe.Frame
	for i := range frame {
		frame[i] = byte(i)
	}
	// Write one frame split across two writes to exercise reassembly
	// across read boundaries.
	if _, err := conn.Write(frame[:2000]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := conn.Write(frame[2000:]); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(time.Second)
	for ring.Snapshot().Count == 0 {
		select {
		case <-deadline:
			t.Fatal("frame never reached ring buffer")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got, ok := ring.Pop()
	if !ok {
		t.Fatal("expected a popped frame")
	}
	if got != frame {
		t.Fatal("reassembled frame does not match original")
	}
}

func TestReceiverDiscardsPartialFrameOnDisconnect(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "bridge.sock")
	ring := ringbuffer.New(8)

	recv, err := NewReceiver(socketPath, ring)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	defer recv.Close()
	go recv.Serve()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	partial := make([]byte, 100)
	if _, err := conn.Write(partial); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	time.Sleep(50 * time.Millisecond)
	if ring.Snapshot().Count != 0 {
		t.Fatal("expected partial frame to be discarded, not pushed")
	}
}

func TestNewReceiverSetsSocketMode(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "bridge.sock")
	ring := ringbuffer.New(8)

	recv, err := NewReceiver(socketPath, ring)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	defer recv.Close()

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if got := info.Mode().Perm(); got != socketMode {
		t.Fatalf("socket mode = %o, want %o", got, socketMode)
	}
}

func TestNewReceiverRemovesStaleSocketFile(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "bridge.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}
	ring := ringbuffer.New(8)
	recv, err := NewReceiver(socketPath, ring)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	defer recv.Close()
}
