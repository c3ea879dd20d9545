// Command station runs the DJ brain process: it decides what plays next
// (THINK), drives the single live decoder subprocess (DO's execution arm),
// paces decoded PCM against Clock A, and forwards frames to Tower over the
// bridge.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/retrowaves/retrowaves/internal/assetindex"
	"github.com/retrowaves/retrowaves/internal/bridge"
	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/events"
	"github.com/retrowaves/retrowaves/internal/httpclient"
	"github.com/retrowaves/retrowaves/internal/pcmframe"
	"github.com/retrowaves/retrowaves/internal/playout"
	"github.com/retrowaves/retrowaves/internal/rotation"
	"github.com/retrowaves/retrowaves/internal/safepath"
	"github.com/retrowaves/retrowaves/internal/scheduler"
	"github.com/retrowaves/retrowaves/internal/stationconfig"
	"github.com/retrowaves/retrowaves/internal/stationhttp"
	"github.com/retrowaves/retrowaves/internal/stationstate"
	"github.com/retrowaves/retrowaves/internal/statestore"
)

// towerRatioSource polls Tower's /tower/buffer over HTTP for the PID
// controller and the pre-fill exit check. A failed poll reports ok=false
// rather than a stale ratio, so callers fall back to base Clock-A pacing.
type towerRatioSource struct {
	url    string
	client *http.Client
}

func newTowerRatioSource(baseURL string) *towerRatioSource {
	return &towerRatioSource{url: baseURL + "/tower/buffer", client: httpclient.ForTelemetryPoll(100 * time.Millisecond)}
}

type bufferRatioBody struct {
	Ratio float64 `json:"ratio"`
}

func (t *towerRatioSource) Ratio() (float64, bool) {
	req, err := http.NewRequest(http.MethodGet, t.url, nil)
	if err != nil {
		return 0, false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	var body bufferRatioBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}
	return body.Ratio, true
}

func main() {
	flag.Parse()
	cfg := stationconfig.Load()

	homeDir, _ := os.UserHomeDir()
	dbPath := os.Getenv("STATION_ASSET_INDEX_PATH")
	if dbPath == "" {
		dbPath = homeDir + "/.retrowaves-station-assets.db"
	}
	roots := safepath.Roots{cfg.RegularMusicPath, cfg.HolidayMusicPath, cfg.DJPath}
	index, err := assetindex.Open(dbPath, roots)
	if err != nil {
		log.Fatalf("station: open asset index: %v", err)
	}
	defer index.Close()

	refresher := assetindex.NewRefresher(index, assetindex.RefresherConfig{
		Paths: []string{cfg.RegularMusicPath, cfg.HolidayMusicPath, cfg.DJPath},
	})

	sender := bridge.NewSender(cfg.BridgeSocketPath)
	defer sender.Close()

	pub := stationstate.NewPublisher(time.Now())
	emitter := stationhttp.NewEmitter(cfg.TowerBaseURL() + "/tower/events/ingest")

	var ratio playout.RatioSource
	var pid *clock.PID
	if cfg.PrefillEnabled || cfg.PIDEnabled {
		ratio = newTowerRatioSource(cfg.TowerBaseURL())
	}
	if cfg.PIDEnabled {
		pid = clock.NewPID(clock.PIDConfig{
			Kp:                0.05,
			Ki:                0.01,
			Kd:                0.01,
			Target:            cfg.PrefillTargetRatio,
			BaseFrameDuration: pcmframe.Duration,
			MinSleep:          0,
			MaxSleep:          100 * time.Millisecond,
		})
	}

	// sched is wired into the engine's segment callbacks below before it
	// exists (the scheduler's Queue is the engine itself), so the callbacks
	// close over this variable and resolve it once scheduler.New runs.
	var sched *scheduler.Scheduler
	getSched := func() *scheduler.Scheduler { return sched }

	engine := playout.New(playout.Config{
		NewCmd:              ffmpegDecodeCommand,
		Sender:              sender,
		Pacer:               clock.NewPacerA(pcmframe.Duration),
		PID:                 pid,
		Ratio:               ratio,
		Prefill:             cfg.PrefillEnabled,
		PrefillTargetRatio:  cfg.PrefillTargetRatio,
		PrefillMaxDuration:  time.Duration(cfg.PrefillTimeoutSec) * time.Second,
		PrefillPollInterval: time.Duration(cfg.PrefillPollInterval) * time.Second,
		OnSegmentStarted:    onSegmentStarted(pub, emitter, getSched),
		OnSegmentFinished:   onSegmentFinished(getSched),
		OnBufferUnderflow: func(ratio float64, at time.Time) {
			emitter.Emit(events.NewUnderflow(at, map[string]any{"ratio": ratio}))
		},
		OnBufferOverflow: func(ratio float64, at time.Time) {
			emitter.Emit(events.NewOverflow(at, map[string]any{"ratio": ratio}))
		},
	})

	rotationSource := rotation.NewPlaylist(cfg.RegularMusicPath, cfg.HolidayMusicPath)
	var announcer scheduler.Announcer
	var djAnnouncer *rotation.StationIDAnnouncer
	if cfg.DJPath != "" {
		djAnnouncer = rotation.NewStationIDAnnouncer(cfg.DJPath)
		announcer = djAnnouncer
	}
	restoreRotationState(cfg.StateDir, rotationSource, djAnnouncer)

	// ToneFallback/SilenceFallback intentionally carry no file_path: when
	// next_song can't be resolved, Station simply decodes nothing for that
	// cycle. The Program ring stays empty and Tower's own source graph
	// falls through to its tone/silence nodes on its own, without Station
	// ever needing to generate that audio itself.
	sched = scheduler.New(scheduler.Config{
		Rotation:        rotationSource,
		Announcer:       announcer,
		Index:           index,
		Queue:           engine,
		Sink:            emitter,
		ToneFallback:    scheduler.AudioEvent{},
		SilenceFallback: scheduler.AudioEvent{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go refresher.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/station/state", stationhttp.NewStateHandler(pub))
	httpSrv := &http.Server{Addr: ":8001", Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("station: http server stopped: %v", err)
		}
	}()

	emitter.Emit(events.NewStationStartup(time.Now()))
	runStartupSequence(ctx, sched, engine, djAnnouncer)
	go engine.Run(ctx)

	log.Printf("station: running, bridging PCM to %s", cfg.BridgeSocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("station: shutting down")

	sched.BeginShutdown()
	emitter.Emit(events.NewStationShutdown(time.Now()))
	pub.TransitionTo(stationstate.StateShuttingDown, stationstate.CurrentAudio{}, time.Now())

	waitForDrainOrTimeout(sched)
	persistRotationState(cfg.StateDir, rotationSource, djAnnouncer)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}

// runStartupSequence drives Station through its startup state machine:
// BOOTSTRAP has already implicitly happened (New starts there). The
// startup announcement, if one is configured, is injected directly as the
// active segment — not enqueued via DO — and its own on_segment_started /
// on_segment_finished callbacks (onSegmentStarted/onSegmentFinished below)
// carry the phase the rest of the way: Think runs while it plays
// (STARTUP_THINK_COMPLETE), and the first Do/enqueue fires the moment it
// finishes (STARTUP_DO_ENQUEUE -> NORMAL_OPERATION). When no announcement is
// available, there is no segment to hang those callbacks off of, so the
// same sequence runs here directly instead.
func runStartupSequence(ctx context.Context, sched *scheduler.Scheduler, engine *playout.Engine, dj *rotation.StationIDAnnouncer) {
	sched.AdvancePhase(scheduler.PhaseStartupAnnouncementPlaying)
	if dj != nil {
		if ann, ok := dj.Announcement(); ok {
			engine.PlaySegment(ctx, ann)
			return
		}
	}
	sched.AdvancePhase(scheduler.PhaseStartupThinkComplete)
	sched.Think()
	sched.AdvancePhase(scheduler.PhaseStartupDoEnqueue)
	sched.Do()
	sched.AdvancePhase(scheduler.PhaseNormalOperation)
}

// restoreRotationState picks up where the previous process left off in the
// music rotation and DJ pool, if state files from a prior shutdown exist.
// First boot (no files yet) is silent.
func restoreRotationState(dir string, music *rotation.Playlist, dj *rotation.StationIDAnnouncer) {
	var st rotation.State
	if err := statestore.LoadJSON(filepath.Join(dir, "rotation_state.json"), &st); err == nil {
		music.Restore(st)
	} else if !os.IsNotExist(err) {
		log.Printf("station: could not restore rotation state: %v", err)
	}
	if dj == nil {
		return
	}
	var djSt rotation.State
	if err := statestore.LoadJSON(filepath.Join(dir, "dj_state.json"), &djSt); err == nil {
		dj.Restore(djSt)
	} else if !os.IsNotExist(err) {
		log.Printf("station: could not restore dj state: %v", err)
	}
}

// persistRotationState writes the rotation and DJ positions atomically
// (write temp, fsync, rename) so the next boot resumes the pass instead of
// restarting it.
func persistRotationState(dir string, music *rotation.Playlist, dj *rotation.StationIDAnnouncer) {
	if err := statestore.SaveJSON(filepath.Join(dir, "rotation_state.json"), music.Snapshot()); err != nil {
		log.Printf("station: could not persist rotation state: %v", err)
	}
	if dj == nil {
		return
	}
	if err := statestore.SaveJSON(filepath.Join(dir, "dj_state.json"), dj.Snapshot()); err != nil {
		log.Printf("station: could not persist dj state: %v", err)
	}
}

// waitForDrainOrTimeout blocks until the terminal intent's last segment has
// actually finished (sched.Drained, fed by onSegmentFinished's
// NotifySegmentFinished call) or scheduler.DefaultDrainMaxWait elapses,
// whichever comes first.
func waitForDrainOrTimeout(sched *scheduler.Scheduler) {
	select {
	case <-sched.Drained():
	case <-time.After(scheduler.DefaultDrainMaxWait):
	}
}

// onSegmentStarted publishes the new current_audio snapshot, emits the
// matching advisory event, and triggers THINK for the
// segment that will follow this one. sched is resolved lazily since the
// engine this callback is wired into is constructed before the scheduler
// that owns it (the scheduler's Queue is the engine itself).
func onSegmentStarted(pub *stationstate.Publisher, emitter *stationhttp.Emitter, sched func() *scheduler.Scheduler) func(scheduler.AudioEvent, time.Time) {
	return func(ev scheduler.AudioEvent, at time.Time) {
		audio := stationstate.CurrentAudio{
			Ok:          true,
			SegmentType: segmentType(ev),
			FilePath:    ev.FilePath,
			StartedAt:   at,
			Title:       ev.Title,
			Artist:      ev.Artist,
			DurationSec: float64(ev.Duration) / 1000,
		}
		state := stationstate.StateSongPlaying
		if ev.HasSegmentDetails {
			audio.HasSegmentDetails = true
			audio.SegmentClass = ev.SegmentClass
			audio.SegmentRole = ev.SegmentRole
			audio.ProductionType = ev.ProductionType
			state = stationstate.StateDJTalking
		}
		pub.TransitionTo(state, audio, at)

		if ev.HasSegmentDetails {
			evt, ok := events.NewSegmentPlaying(at, ev.SegmentClass, ev.SegmentRole, ev.ProductionType)
			if ok {
				emitter.Emit(evt)
			}
		} else {
			emitter.Emit(events.NewSongPlaying(at, events.SongMetadata{
				Title: ev.Title, Artist: ev.Artist, Album: ev.Album, DurationMs: ev.Duration,
			}))
		}

		s := sched()
		s.Think()
		if s.Phase() == scheduler.PhaseStartupAnnouncementPlaying {
			s.AdvancePhase(scheduler.PhaseStartupThinkComplete)
		}
	}
}

// onSegmentFinished is the DO half of the THINK/DO split: it
// enqueues whatever THINK already prepared for the segment that just
// started, and carries the startup sequence from STARTUP_THINK_COMPLETE
// through to NORMAL_OPERATION the first time it runs (i.e. when the
// startup announcement itself finishes).
func onSegmentFinished(sched func() *scheduler.Scheduler) func(scheduler.AudioEvent, time.Time) {
	return func(ev scheduler.AudioEvent, at time.Time) {
		s := sched()
		s.NotifySegmentFinished(ev)
		if s.Phase() == scheduler.PhaseStartupThinkComplete {
			s.AdvancePhase(scheduler.PhaseStartupDoEnqueue)
			s.Do()
			s.AdvancePhase(scheduler.PhaseNormalOperation)
			return
		}
		s.Do()
	}
}

func segmentType(ev scheduler.AudioEvent) string {
	if ev.HasSegmentDetails {
		return "segment"
	}
	return "song"
}

// ffmpegDecodeCommand decodes path to raw s16le stereo 48kHz PCM on stdout,
// seeking to startOffsetMs first when resuming mid-file.
func ffmpegDecodeCommand(path string, startOffsetMs int64) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if startOffsetMs > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(startOffsetMs)/1000, 'f', 3, 64))
	}
	args = append(args,
		"-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(pcmframe.SampleRate),
		"-ac", strconv.Itoa(pcmframe.Channels),
		"pipe:1",
	)
	return exec.Command("ffmpeg", args...)
}
