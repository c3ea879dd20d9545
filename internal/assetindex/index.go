// Package assetindex caches which on-disk audio files are currently
// present and readable, backed by sqlite so the cache survives restarts
// without a full filesystem walk.
package assetindex

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/retrowaves/retrowaves/internal/safepath"
)

// Entry is one cached asset's last known state.
type Entry struct {
	Path      string
	Valid     bool
	SizeBytes int64
	CheckedAt time.Time
}

// Index is a sqlite-backed cache of validated file paths, mirrored into
// an RWMutex-guarded map so the scheduler's THINK step can read it
// without touching disk. Writes go to sqlite first, then update the mirror,
// so a crash mid-write never leaves the mirror ahead of durable state.
type Index struct {
	db    *sql.DB
	roots safepath.Roots

	mu      sync.RWMutex
	entries map[string]Entry
}

// Open opens (creating if necessary) the sqlite database at dbPath and
// loads its current contents into memory.
func Open(dbPath string, roots safepath.Roots) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("assetindex: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS assets (
		path TEXT PRIMARY KEY,
		valid INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		checked_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("assetindex: migrate: %w", err)
	}

	idx := &Index{db: db, roots: roots, entries: make(map[string]Entry)}
	if err := idx.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) loadAll() error {
	rows, err := idx.db.Query(`SELECT path, valid, size_bytes, checked_at FROM assets`)
	if err != nil {
		return fmt.Errorf("assetindex: load: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var (
			path      string
			valid     int
			size      int64
			checkedAt int64
		)
		if err := rows.Scan(&path, &valid, &size, &checkedAt); err != nil {
			return fmt.Errorf("assetindex: scan: %w", err)
		}
		entries[path] = Entry{
			Path:      path,
			Valid:     valid != 0,
			SizeBytes: size,
			CheckedAt: time.Unix(checkedAt, 0),
		}
	}
	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
	return rows.Err()
}

// Close releases the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Lookup returns the cached entry for path, if any, without touching disk.
func (idx *Index) Lookup(path string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[path]
	return e, ok
}

// Validate confirms path is both confined to an allowed root and readable
// on disk right now, persisting the result. This does real I/O and should
// only be called off the audio tick path (startup, control-plane
// handlers, or the background Refresher).
func (idx *Index) Validate(path string) (Entry, error) {
	now := time.Now()
	if !idx.roots.Contains(path) {
		e := Entry{Path: path, Valid: false, CheckedAt: now}
		idx.store(e)
		return e, fmt.Errorf("assetindex: %s is outside configured roots", path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		e := Entry{Path: path, Valid: false, CheckedAt: now}
		idx.store(e)
		return e, fmt.Errorf("assetindex: %s is not a readable file", path)
	}
	e := Entry{Path: path, Valid: true, SizeBytes: info.Size(), CheckedAt: now}
	idx.store(e)
	return e, nil
}

func (idx *Index) store(e Entry) {
	_, _ = idx.db.Exec(
		`INSERT INTO assets (path, valid, size_bytes, checked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET valid=excluded.valid, size_bytes=excluded.size_bytes, checked_at=excluded.checked_at`,
		e.Path, boolToInt(e.Valid), e.SizeBytes, e.CheckedAt.Unix(),
	)
	idx.mu.Lock()
	idx.entries[e.Path] = e
	idx.mu.Unlock()
}

// Snapshot returns every currently cached entry, for the Refresher's sweep.
func (idx *Index) Snapshot() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
