package playout

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/scheduler"
)

type recordingSender struct {
	frames int
}

func (s *recordingSender) Send(pcmframe.Frame) { s.frames++ }

type fixedRatio struct {
	ratio float64
	ok    bool
}

func (f fixedRatio) Ratio() (float64, bool) { return f.ratio, f.ok }

func emptyFileCommand(t *testing.T) DecoderCommand {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pcm")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("seed empty file: %v", err)
	}
	return func(_ string, _ int64) *exec.Cmd {
		return exec.Command("cat", path)
	}
}

func TestEngineRunsEmptySegmentAndFiresCallbacks(t *testing.T) {
	started := make(chan struct{}, 1)
	finished := make(chan struct{}, 1)

	e := New(Config{
		NewCmd: emptyFileCommand(t),
		Sender: &recordingSender{},
		Pacer:  clock.NewPacerA(pcmframe.Duration),
		OnSegmentStarted: func(scheduler.AudioEvent, time.Time) {
			started <- struct{}{}
		},
		OnSegmentFinished: func(scheduler.AudioEvent, time.Time) {
			finished <- struct{}{}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Enqueue(scheduler.AudioEvent{FilePath: "song.pcm"})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("OnSegmentStarted never fired")
	}
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("OnSegmentFinished never fired")
	}
}

func TestPlaySegmentFiresCallbacksAndBypassesQueue(t *testing.T) {
	started := make(chan struct{}, 1)
	finished := make(chan struct{}, 1)

	e := New(Config{
		NewCmd: emptyFileCommand(t),
		Sender: &recordingSender{},
		Pacer:  clock.NewPacerA(pcmframe.Duration),
		OnSegmentStarted: func(scheduler.AudioEvent, time.Time) {
			started <- struct{}{}
		},
		OnSegmentFinished: func(scheduler.AudioEvent, time.Time) {
			finished <- struct{}{}
		},
	})

	e.PlaySegment(context.Background(), scheduler.AudioEvent{FilePath: "announcement.pcm"})

	select {
	case <-started:
	default:
		t.Fatal("OnSegmentStarted did not fire synchronously during PlaySegment")
	}
	select {
	case <-finished:
	default:
		t.Fatal("OnSegmentFinished did not fire synchronously during PlaySegment")
	}
	if _, _, ok := e.CurrentSegment(); ok {
		t.Fatal("expected no current segment once PlaySegment returns")
	}
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	e := New(Config{NewCmd: func(_ string, _ int64) *exec.Cmd { return exec.Command("true") }, Sender: &recordingSender{}, Pacer: clock.NewPacerA(pcmframe.Duration)})
	for i := 0; i < queueDepth; i++ {
		e.Enqueue(scheduler.AudioEvent{FilePath: "x"})
	}
	// One more over capacity must not block.
	done := make(chan struct{})
	go func() {
		e.Enqueue(scheduler.AudioEvent{FilePath: "overflow"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestCurrentSegmentEmptyBeforeAnyRun(t *testing.T) {
	e := New(Config{NewCmd: emptyFileCommand(t), Sender: &recordingSender{}, Pacer: clock.NewPacerA(pcmframe.Duration)})
	if _, _, ok := e.CurrentSegment(); ok {
		t.Fatal("expected no current segment before Run starts anything")
	}
}

func TestPrefillSkippedWhenRatioAlreadyAtTarget(t *testing.T) {
	e := New(Config{
		NewCmd:  emptyFileCommand(t),
		Sender:  &recordingSender{},
		Pacer:   clock.NewPacerA(pcmframe.Duration),
		Ratio:   fixedRatio{ratio: 0.9, ok: true},
		Prefill: true,
	})
	dec, err := startDecoder(emptyFileCommand(t), "unused", 0)
	if err != nil {
		t.Fatalf("startDecoder: %v", err)
	}
	defer dec.stop()
	if sent := e.prefill(context.Background(), dec); sent != 0 {
		t.Fatalf("prefill sent %d frames, want 0 when already at target", sent)
	}
}

func pcmFileCommand(t *testing.T, frames int) DecoderCommand {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.pcm")
	if err := os.WriteFile(path, make([]byte, frames*pcmframe.Size), 0o644); err != nil {
		t.Fatalf("seed pcm file: %v", err)
	}
	return func(_ string, _ int64) *exec.Cmd {
		return exec.Command("cat", path)
	}
}

func TestPrefillBurstsWholeFileWhenBufferLow(t *testing.T) {
	sender := &recordingSender{}
	e := New(Config{
		NewCmd:  pcmFileCommand(t, 3),
		Sender:  sender,
		Pacer:   clock.NewPacerA(pcmframe.Duration),
		Ratio:   fixedRatio{ratio: 0.1, ok: true},
		Prefill: true,
	})
	dec, err := startDecoder(e.cfg.NewCmd, "unused", 0)
	if err != nil {
		t.Fatalf("startDecoder: %v", err)
	}
	defer dec.stop()
	if sent := e.prefill(context.Background(), dec); sent != 3 {
		t.Fatalf("prefill sent %d frames, want all 3 before EOF", sent)
	}
}

func TestPrefillDisabledSendsNothing(t *testing.T) {
	e := New(Config{
		NewCmd: pcmFileCommand(t, 3),
		Sender: &recordingSender{},
		Pacer:  clock.NewPacerA(pcmframe.Duration),
		Ratio:  fixedRatio{ratio: 0.1, ok: true},
	})
	dec, err := startDecoder(e.cfg.NewCmd, "unused", 0)
	if err != nil {
		t.Fatalf("startDecoder: %v", err)
	}
	defer dec.stop()
	if sent := e.prefill(context.Background(), dec); sent != 0 {
		t.Fatalf("prefill sent %d frames with pre-fill disabled, want 0", sent)
	}
}

func TestFailedDecoderStillFiresSegmentCallbacks(t *testing.T) {
	started := 0
	finished := 0
	e := New(Config{
		NewCmd: func(_ string, _ int64) *exec.Cmd {
			return exec.Command("/nonexistent/decoder-binary")
		},
		Sender:            &recordingSender{},
		Pacer:             clock.NewPacerA(pcmframe.Duration),
		OnSegmentStarted:  func(scheduler.AudioEvent, time.Time) { started++ },
		OnSegmentFinished: func(scheduler.AudioEvent, time.Time) { finished++ },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // skip the failure backoff sleep
	e.runSegment(ctx, scheduler.AudioEvent{FilePath: "missing.wav"})

	if started != 1 || finished != 1 {
		t.Fatalf("callbacks fired started=%d finished=%d, want 1/1 so the intent cycle advances", started, finished)
	}
}

func TestUnderflowCallbackFiresOncePerExcursion(t *testing.T) {
	underflows := 0
	e := New(Config{
		NewCmd: pcmFileCommand(t, 3),
		Sender: &recordingSender{},
		Pacer:  clock.NewPacerA(time.Millisecond),
		Ratio:  fixedRatio{ratio: 0, ok: true},
		OnBufferUnderflow: func(float64, time.Time) {
			underflows++
		},
	})
	e.PlaySegment(context.Background(), scheduler.AudioEvent{FilePath: "tone.pcm"})

	if underflows != 1 {
		t.Fatalf("underflow callback fired %d times, want exactly 1 for one empty-buffer excursion", underflows)
	}
}
