// Package playout owns Station's single live decoder subprocess: spawning
// it for one AudioEvent at a time, pacing its PCM output against Clock A
// (with optional PID adjustment), running the pre-fill burst at segment
// start, and forwarding frames across the bridge to Tower.
package playout

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"syscall"
	"time"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

// DecoderCommand builds the argv for the subprocess that decodes path to
// raw interleaved s16le stereo PCM at pcmframe.SampleRate on stdout,
// starting startOffsetMs into the file. Supplied by the caller so the
// decoder stays format-agnostic (ffmpeg in practice).
type DecoderCommand func(path string, startOffsetMs int64) *exec.Cmd

// decoder wraps one subprocess instance for the duration of a single
// segment. It is not restarted on failure the way the encoder is — a
// decode failure ends the segment early and PlayoutEngine moves on to the
// next DO'd AudioEvent.
type decoder struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	pending []byte // partial frame bytes carried between Read calls
}

func startDecoder(newCmd DecoderCommand, path string, startOffsetMs int64) (*decoder, error) {
	cmd := newCmd(path, startOffsetMs)
	cmd.SysProcAttr = processGroupAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("playout: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("playout: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("playout: start decoder: %w", err)
	}
	go drainDecoderStderr(stderr)
	return &decoder{cmd: cmd, stdout: stdout}, nil
}

// nextFrame blocks until one full pcmframe.Size chunk has been read, EOF,
// or an error. Returns ok=false on EOF or error — either way the segment
// is over.
func (d *decoder) nextFrame() (pcmframe.Frame, bool) {
	buf := make([]byte, 8192)
	for len(d.pending) < pcmframe.Size {
		n, err := d.stdout.Read(buf)
		if n > 0 {
			d.pending = append(d.pending, buf[:n]...)
		}
		if err != nil {
			if len(d.pending) >= pcmframe.Size {
				break
			}
			return pcmframe.Frame{}, false
		}
	}
	var f pcmframe.Frame
	copy(f[:], d.pending[:pcmframe.Size])
	d.pending = d.pending[pcmframe.Size:]
	return f, true
}

// stop terminates the decoder's whole process group. Safe to call more
// than once or on a decoder whose process already exited.
func (d *decoder) stop() {
	if d.cmd == nil || d.cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-d.cmd.Process.Pid, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = d.cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = syscall.Kill(-d.cmd.Process.Pid, syscall.SIGKILL)
	}
}

func drainDecoderStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 1024*1024)
	for sc.Scan() {
		log.Printf("playout decoder[stderr]: %s", sc.Text())
	}
}

// ctxDone is a small helper so the prefill and pacedLoop loops read cleanly.
func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
