package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retrowaves/retrowaves/internal/assetindex"
	"github.com/retrowaves/retrowaves/internal/events"
)

// Phase is the startup sequencing state machine. Until
// NormalOperation is reached the playout queue holds nothing but the
// startup announcement: THINK may run ahead of schedule, but DO does not
// enqueue anything beyond it until StartupDoEnqueue.
type Phase string

const (
	PhaseBootstrap                  Phase = "BOOTSTRAP"
	PhaseStartupAnnouncementPlaying Phase = "STARTUP_ANNOUNCEMENT_PLAYING"
	PhaseStartupThinkComplete       Phase = "STARTUP_THINK_COMPLETE"
	PhaseStartupDoEnqueue           Phase = "STARTUP_DO_ENQUEUE"
	PhaseNormalOperation            Phase = "NORMAL_OPERATION"
)

// DefaultDrainMaxWait bounds how long SHUTTING_DOWN waits for the terminal
// intent's last segment to finish before forcing termination anyway.
const DefaultDrainMaxWait = 5 * time.Minute

// Rotation selects the next song to play. Implementations decide ordering,
// repetition avoidance, dayparting, etc; the scheduler only consumes the
// result. Returning ok=false means rotation has nothing playable, which
// THINK treats as "next_song unresolvable" and falls back to tone/silence.
type Rotation interface {
	NextSong() (AudioEvent, bool)
}

// Announcer supplies the optional DJ talk segments (outro, station IDs,
// intro) that may precede a song. A nil Announcer means the station never
// inserts DJ talk — NextSong plays back to back.
type Announcer interface {
	// Outro returns the talk segment that closes out the segment currently
	// ending, if one is due.
	Outro() (AudioEvent, bool)
	// StationIDs returns zero or more station identification segments due
	// to play before the next song.
	StationIDs() []AudioEvent
	// Intro returns the talk segment introducing the upcoming song, if one
	// is due.
	Intro() (AudioEvent, bool)
}

// TerminalAnnouncer is the optional extension an Announcer may implement to
// supply the shutdown announcement played as the terminal intent's only
// segment. rotation.StationIDAnnouncer satisfies it with the same pool the
// startup announcement draws from.
type TerminalAnnouncer interface {
	Announcement() (AudioEvent, bool)
}

// PlayoutQueue is the destination DO appends to. It is never read by THINK.
type PlayoutQueue interface {
	Enqueue(ev AudioEvent)
}

// EventSink receives Station's advisory events (dj_think_started,
// dj_think_completed). A nil sink means events are dropped, not blocked on.
type EventSink interface {
	Emit(events.Event)
}

// Scheduler owns the THINK/DO split: THINK decides, DO executes, and the
// two must never be merged into one call so that a decision can never
// block on queue or I/O contention.
type Scheduler struct {
	rotation  Rotation
	announcer Announcer
	index     *assetindex.Index
	queue     PlayoutQueue
	sink      EventSink

	toneFallback    AudioEvent
	silenceFallback AudioEvent
	safeDefault     AudioEvent

	drainMaxWait time.Duration
	now          func() time.Time

	mu              sync.Mutex
	phase           Phase
	pending         *DJIntent
	cycleEventsLeft int
	shutdownStarted bool
	terminalLatched bool
	drainDeadline   time.Time

	terminalIntentID   string
	terminalEventsLeft int
	terminalDone       chan struct{}
}

// Config bundles the fixed collaborators a Scheduler is built from.
type Config struct {
	Rotation        Rotation
	Announcer       Announcer // optional; nil disables DJ talk entirely
	Index           *assetindex.Index
	Queue           PlayoutQueue
	Sink            EventSink // optional
	ToneFallback    AudioEvent
	SilenceFallback AudioEvent
	DrainMaxWait    time.Duration
}

// New builds a Scheduler starting in BOOTSTRAP.
func New(cfg Config) *Scheduler {
	if cfg.DrainMaxWait <= 0 {
		cfg.DrainMaxWait = DefaultDrainMaxWait
	}
	return &Scheduler{
		rotation:        cfg.Rotation,
		announcer:       cfg.Announcer,
		index:           cfg.Index,
		queue:           cfg.Queue,
		sink:            cfg.Sink,
		toneFallback:    cfg.ToneFallback,
		silenceFallback: cfg.SilenceFallback,
		safeDefault:     cfg.SilenceFallback,
		drainMaxWait:    cfg.DrainMaxWait,
		now:             time.Now,
		phase:           PhaseBootstrap,
	}
}

// Phase returns the current startup-sequencing phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// AdvancePhase moves the startup sequence forward by one step. It is the
// caller's responsibility (the startup driver) to call this only when the
// prior phase's precondition is actually satisfied — e.g. the startup
// announcement has actually finished playing before moving past
// STARTUP_ANNOUNCEMENT_PLAYING.
func (s *Scheduler) AdvancePhase(next Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = next
}

// BeginShutdown flips the terminal latch exactly once. The first THINK
// call that runs after this point produces the Terminal intent (and the
// DO that consumes it enqueues it); every THINK call after that returns
// nil, and DO enqueues nothing further. An intent prepared before this
// call is still enqueued normally by the next DO. Calling this more than
// once is a no-op: there is only ever one terminal intent.
func (s *Scheduler) BeginShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdownStarted {
		return
	}
	s.shutdownStarted = true
	s.drainDeadline = s.now().Add(s.drainMaxWait)
}

// DrainExpired reports whether SHUTTING_DOWN has outlived its configured
// max wait and should force-terminate rather than keep waiting on the
// terminal segment to finish.
func (s *Scheduler) DrainExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownStarted && !s.drainDeadline.IsZero() && s.now().After(s.drainDeadline)
}

// Drained returns a channel that closes once the terminal DJIntent's final
// AudioEvent has been observed finishing (via NotifySegmentFinished) — the
// point at which SHUTTING_DOWN may actually begin. The channel is created
// lazily so a caller may select on it immediately after BeginShutdown
// without racing Do.
func (s *Scheduler) Drained() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureTerminalDoneLocked()
}

func (s *Scheduler) ensureTerminalDoneLocked() chan struct{} {
	if s.terminalDone == nil {
		s.terminalDone = make(chan struct{})
	}
	return s.terminalDone
}

// NotifySegmentFinished must be called once per AudioEvent's
// on_segment_finished, regardless of phase. It advances the cycle counter
// gating Do (one intent is consumed per completed cycle, not per finished
// segment), and once the terminal DJIntent's last AudioEvent (always
// next_song, per AudioEvents' playout order) has finished, it closes the
// channel Drained returns so shutdown can proceed without waiting out the
// full DrainMaxWait.
func (s *Scheduler) NotifySegmentFinished(ev AudioEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycleEventsLeft > 0 {
		s.cycleEventsLeft--
	}
	if s.terminalIntentID == "" || ev.IntentID != s.terminalIntentID {
		return
	}
	s.terminalEventsLeft--
	if s.terminalEventsLeft <= 0 {
		done := s.ensureTerminalDoneLocked()
		select {
		case <-done:
		default:
			close(done)
		}
	}
}

// Think is step one of the cycle: decide what plays next, without
// mutating the playout queue or decoding audio. Paths are checked against
// the asset index cache; a path the cache has not seen yet is validated
// once through Index.Validate (a file stat plus a sqlite write). Think must
// complete well before the current segment ends; a nil return means
// there was nothing new to decide (already latched terminal, or a
// pending intent from a prior Think is still unconsumed).
func (s *Scheduler) Think() *DJIntent {
	s.mu.Lock()
	if s.terminalLatched {
		s.mu.Unlock()
		return nil
	}
	if s.pending != nil {
		// A prior intent hasn't been picked up by Do yet; THINK never
		// produces a second one until DO has consumed the first.
		s.mu.Unlock()
		return nil
	}
	terminal := s.shutdownStarted
	s.mu.Unlock()

	intentID := uuid.NewString()
	s.emit(events.NewDJThinkStarted(s.now(), intentID))

	intent := s.think5Steps(intentID, terminal)

	s.mu.Lock()
	s.pending = &intent
	if terminal {
		s.terminalLatched = true
	}
	s.mu.Unlock()

	s.emit(events.NewDJThinkCompleted(s.now(), intentID))
	return &intent
}

// think5Steps performs THINK's five decision steps in order: (1) select
// next_song via rotation, (2) optionally select outro/station
// IDs/intro via the announcer, (3) extract next_song's metadata — already
// carried on the AudioEvent by Rotation, nothing further to fetch, (4)
// validate every resolved path against the asset index, omitting any
// non-essential segment whose file has gone missing (no substitute segment
// is inserted), and falling back to tone/silence only if next_song itself can't be
// resolved, (5) assemble the immutable DJIntent. A terminal intent skips
// all of that: its only segment is the shutdown announcement.
func (s *Scheduler) think5Steps(intentID string, terminal bool) DJIntent {
	if terminal {
		return s.terminalIntent(intentID)
	}
	song, ok := s.rotation.NextSong()
	if !ok {
		song = s.toneFallback
	}
	song = s.resolveOrFallback(song, s.toneFallback)
	if !s.pathValid(song.FilePath) {
		song = s.silenceFallback
	}

	intent := DJIntent{IntentID: intentID, NextSong: song}

	if s.announcer != nil {
		if outro, ok := s.announcer.Outro(); ok {
			resolved := s.resolveOrDrop(outro)
			intent.Outro = resolved
		}
		for _, id := range s.announcer.StationIDs() {
			if resolved := s.resolveOrDrop(id); resolved != nil {
				intent.StationIDs = append(intent.StationIDs, *resolved)
				intent.HasLegalID = intent.HasLegalID || resolved.SegmentRole == events.SegmentRoleLegal
			}
		}
		if intro, ok := s.announcer.Intro(); ok {
			resolved := s.resolveOrDrop(intro)
			intent.Intro = resolved
		}
	}

	for i := range intent.StationIDs {
		intent.StationIDs[i].IntentID = intentID
	}
	intent.NextSong.IntentID = intentID
	if intent.Outro != nil {
		intent.Outro.IntentID = intentID
	}
	if intent.Intro != nil {
		intent.Intro.IntentID = intentID
	}
	return intent
}

// terminalIntent builds the single intent permitted after shutdown begins:
// a shutdown announcement drawn from the announcer's pool, with no outro,
// station IDs, or intro. With no announcer, no pooled segment, or an
// unresolvable path, the intent is empty and playout advances immediately.
func (s *Scheduler) terminalIntent(intentID string) DJIntent {
	intent := DJIntent{IntentID: intentID, Terminal: true, NextSong: AudioEvent{IntentID: intentID}}
	ta, ok := s.announcer.(TerminalAnnouncer)
	if !ok {
		return intent
	}
	ann, ok := ta.Announcement()
	if !ok || !s.pathValid(ann.FilePath) {
		return intent
	}
	ann.IntentID = intentID
	intent.NextSong = ann
	return intent
}

// resolveOrFallback validates ev's path and substitutes fallback wholesale
// if it's missing — used for next_song, where a bad path means the whole
// segment must become something else, not just be dropped.
func (s *Scheduler) resolveOrFallback(ev, fallback AudioEvent) AudioEvent {
	if s.pathValid(ev.FilePath) {
		return ev
	}
	log.Printf("scheduler: next_song path invalid, falling back: %s", ev.FilePath)
	return fallback
}

// resolveOrDrop validates ev's path for a non-essential segment (outro,
// station ID, intro): if invalid, the segment is simply omitted rather
// than substituted, since skipping a station ID is harmless but playing
// silence in its place is not worth the dead air.
func (s *Scheduler) resolveOrDrop(ev AudioEvent) *AudioEvent {
	if s.pathValid(ev.FilePath) {
		out := ev
		return &out
	}
	log.Printf("scheduler: dropping unresolvable segment: %s", ev.FilePath)
	return nil
}

func (s *Scheduler) pathValid(path string) bool {
	if path == "" {
		return false
	}
	if s.index == nil {
		return true
	}
	if e, ok := s.index.Lookup(path); ok {
		return e.Valid
	}
	e, err := s.index.Validate(path)
	return err == nil && e.Valid
}

func (s *Scheduler) emit(ev events.Event) {
	if s.sink != nil {
		s.sink.Emit(ev)
	}
}

// Do is step two of the cycle: append whatever Think already prepared to
// the playout queue, in playout order, then clear it so it is never
// enqueued twice. Do runs at every segment finish, but an intent's events
// span several segments, so consumption is gated on the previous cycle
// having fully played out — a Do call mid-cycle is a no-op. Do never
// decides anything and never blocks; when Think failed to leave an intent
// at a cycle boundary during normal operation, Do enqueues the safe
// default Think's construction precomputed, rather than recovering or
// inventing one on the spot.
func (s *Scheduler) Do() {
	s.mu.Lock()
	if s.cycleEventsLeft > 0 {
		s.mu.Unlock()
		return
	}
	intent := s.pending
	s.pending = nil
	var events []AudioEvent
	if intent != nil {
		events = intent.AudioEvents()
		if intent.Terminal {
			s.terminalIntentID = intent.IntentID
			s.terminalEventsLeft = len(events)
			s.ensureTerminalDoneLocked()
		}
	} else if !s.terminalLatched && s.phase == PhaseNormalOperation {
		log.Printf("scheduler: no prepared intent at DO, enqueueing safe default")
		events = []AudioEvent{s.safeDefault}
	}
	s.cycleEventsLeft = len(events)
	s.mu.Unlock()

	for _, ev := range events {
		s.queue.Enqueue(ev)
	}
}
