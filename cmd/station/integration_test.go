// Integration tests: wire the real scheduler, playout engine, rotation, and
// state publisher together the way main does, with cat standing in for the
// decoder subprocess and a stub Tower accepting emitted events.
package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/playout"
	"github.com/retrowaves/retrowaves/internal/rotation"
	"github.com/retrowaves/retrowaves/internal/scheduler"
	"github.com/retrowaves/retrowaves/internal/stationhttp"
	"github.com/retrowaves/retrowaves/internal/stationstate"
)

type countingSender struct {
	mu     sync.Mutex
	frames int
}

func (s *countingSender) Send(pcmframe.Frame) {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

func (s *countingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func TestIntegration_playsRotationThenDrainsOnShutdown(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	dir := t.TempDir()
	// Each "song" is two raw PCM frames; cat is the decoder, so file bytes
	// pass straight through as decoded output.
	if err := os.WriteFile(filepath.Join(dir, "a.mp3"), make([]byte, 2*pcmframe.Size), 0o644); err != nil {
		t.Fatalf("seed song: %v", err)
	}

	tower := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer tower.Close()

	sender := &countingSender{}
	pub := stationstate.NewPublisher(time.Now())
	emitter := stationhttp.NewEmitter(tower.URL)

	var sched *scheduler.Scheduler
	getSched := func() *scheduler.Scheduler { return sched }
	engine := playout.New(playout.Config{
		NewCmd: func(path string, _ int64) *exec.Cmd {
			return exec.Command("cat", path)
		},
		Sender:            sender,
		Pacer:             clock.NewPacerA(time.Millisecond),
		OnSegmentStarted:  onSegmentStarted(pub, emitter, getSched),
		OnSegmentFinished: onSegmentFinished(getSched),
	})
	sched = scheduler.New(scheduler.Config{
		Rotation: rotation.NewPlaylist(dir),
		Queue:    engine,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runStartupSequence(ctx, sched, engine, nil)
	go engine.Run(ctx)

	deadline := time.After(5 * time.Second)
	for sender.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("engine sent only %d frames, want the first song's 2", sender.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	snap := pub.Get()
	if snap.State != stationstate.StateSongPlaying {
		t.Fatalf("station state = %s, want SONG_PLAYING while rotation runs", snap.State)
	}
	if !snap.CurrentAudio.Ok || filepath.Base(snap.CurrentAudio.FilePath) != "a.mp3" {
		t.Fatalf("current_audio = %+v, want the rotation's song", snap.CurrentAudio)
	}

	sched.BeginShutdown()
	select {
	case <-sched.Drained():
	case <-time.After(5 * time.Second):
		t.Fatal("terminal intent never drained after BeginShutdown")
	}
	if sched.Think() != nil {
		t.Fatal("Think produced an intent after the terminal latch")
	}
}
