// Package rotation provides a minimal directory-backed song rotation: the
// DJ weighting/heuristics this stands in for are explicitly out of scope,
// so this is deliberately a shuffled round-robin over a fixed file list
// rather than anything smarter.
package rotation

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/retrowaves/retrowaves/internal/events"
	"github.com/retrowaves/retrowaves/internal/scheduler"
)

// supportedExt is the set of file extensions scanned into the rotation.
var supportedExt = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".m4a":  true,
}

// Playlist is a shuffled round-robin scheduler.Rotation over every audio
// file found directly under one or more directories. It reshuffles once
// the current pass is exhausted; the new random order may match the
// previous one.
type Playlist struct {
	mu    sync.Mutex
	files []string
	pos   int
}

// NewPlaylist scans dirs (ignoring any that don't exist or aren't
// directories) and returns a Playlist over every supported audio file
// found, pre-shuffled. An empty Playlist is valid; NextSong simply returns
// ok=false.
func NewPlaylist(dirs ...string) *Playlist {
	var files []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !supportedExt[filepath.Ext(e.Name())] {
				continue
			}
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	p := &Playlist{files: files}
	p.shuffle()
	return p
}

// State is the persistable snapshot of a Playlist: the current pass's
// ordering and the position within it. Saved atomically at shutdown and
// restored at the next boot so restarting the process doesn't replay the
// same stretch of the rotation.
type State struct {
	Files []string `json:"files"`
	Pos   int      `json:"pos"`
}

// Snapshot captures the playlist's current ordering and position.
func (p *Playlist) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	files := make([]string, len(p.files))
	copy(files, p.files)
	return State{Files: files, Pos: p.pos}
}

// Restore adopts a previously saved State, keeping only files that still
// exist in the current scan (deleted assets drop out; newly added ones are
// appended to the end of the pass). A State whose files have all vanished
// leaves the fresh scan untouched.
func (p *Playlist) Restore(st State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := make(map[string]bool, len(p.files))
	for _, f := range p.files {
		current[f] = true
	}
	var kept []string
	pos := st.Pos
	for i, f := range st.Files {
		if current[f] {
			delete(current, f)
			kept = append(kept, f)
		} else if i < st.Pos && pos > 0 {
			pos--
		}
	}
	if len(kept) == 0 {
		return
	}
	for _, f := range p.files {
		if current[f] {
			kept = append(kept, f)
		}
	}
	if pos > len(kept) {
		pos = len(kept)
	}
	p.files = kept
	p.pos = pos
}

func (p *Playlist) shuffle() {
	rand.Shuffle(len(p.files), func(i, j int) { p.files[i], p.files[j] = p.files[j], p.files[i] })
}

// NextSong returns the next file in rotation order, reshuffling and
// wrapping once the pass completes. ok=false only when the Playlist has no
// files at all.
func (p *Playlist) NextSong() (scheduler.AudioEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.files) == 0 {
		return scheduler.AudioEvent{}, false
	}
	if p.pos >= len(p.files) {
		p.pos = 0
		p.shuffle()
	}
	path := p.files[p.pos]
	p.pos++
	return scheduler.AudioEvent{
		FilePath: path,
		Title:    filepath.Base(path),
	}, true
}

// StationIDAnnouncer plays one station-ID segment from a fixed directory
// before every song, and never supplies an outro or intro. Satisfies
// scheduler.Announcer.
type StationIDAnnouncer struct {
	ids *Playlist
}

// NewStationIDAnnouncer scans dir for station-ID segments.
func NewStationIDAnnouncer(dir string) *StationIDAnnouncer {
	return &StationIDAnnouncer{ids: NewPlaylist(dir)}
}

// Snapshot and Restore expose the announcer's underlying pool position for
// the same shutdown persistence the music rotation gets.
func (a *StationIDAnnouncer) Snapshot() State  { return a.ids.Snapshot() }
func (a *StationIDAnnouncer) Restore(st State) { a.ids.Restore(st) }

func (a *StationIDAnnouncer) Outro() (scheduler.AudioEvent, bool) { return scheduler.AudioEvent{}, false }

func (a *StationIDAnnouncer) Intro() (scheduler.AudioEvent, bool) { return scheduler.AudioEvent{}, false }

// StationIDs returns one station-ID segment per call, if any are configured.
func (a *StationIDAnnouncer) StationIDs() []scheduler.AudioEvent {
	ev, ok := a.ids.NextSong()
	if !ok {
		return nil
	}
	ev.SegmentClass = events.SegmentClassStationID
	ev.SegmentRole = events.SegmentRoleStandalone
	ev.ProductionType = events.ProductionSystem
	ev.HasSegmentDetails = true
	return []scheduler.AudioEvent{ev}
}

// Announcement draws one segment from the same DJ-path pool for Station's
// startup/shutdown announcements — the segment injected directly as the
// active segment outside the THINK/DO queue (shutdown's terminal intent
// reuses the same pool for its own announcement slot). ok=false when the
// pool is empty, meaning no
// announcement is available and the caller advances state immediately.
func (a *StationIDAnnouncer) Announcement() (scheduler.AudioEvent, bool) {
	ev, ok := a.ids.NextSong()
	if !ok {
		return scheduler.AudioEvent{}, false
	}
	ev.SegmentClass = events.SegmentClassImaging
	ev.SegmentRole = events.SegmentRoleTopOfHour
	ev.ProductionType = events.ProductionSystem
	ev.HasSegmentDetails = true
	return ev, true
}
