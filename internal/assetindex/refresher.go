package assetindex

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// RefresherConfig controls the background revalidation worker.
type RefresherConfig struct {
	// Paths is the fixed set of configured asset directories to keep
	// validated (regular music, holiday music, DJ announcement files).
	Paths []string
	// Interval is how often every path is revalidated. Default: 5 minutes.
	Interval time.Duration
}

func (c *RefresherConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
}

// Refresher periodically revalidates every configured asset path so a
// file going missing or reappearing on disk is reflected in the index
// without anything on the audio path ever touching the filesystem.
type Refresher struct {
	idx   *Index
	cfg   RefresherConfig
	Force chan struct{}
}

// NewRefresher builds a Refresher over idx with the given config.
func NewRefresher(idx *Index, cfg RefresherConfig) *Refresher {
	cfg.setDefaults()
	return &Refresher{idx: idx, cfg: cfg, Force: make(chan struct{}, 1)}
}

// Run sweeps all configured paths immediately, then again every Interval,
// until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	log.Printf("assetindex: refresher started (%d paths, interval=%s)", len(r.cfg.Paths), r.cfg.Interval)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		case <-r.Force:
			r.sweep()
		}
	}
}

// TriggerRefresh requests an immediate sweep (non-blocking).
func (r *Refresher) TriggerRefresh() {
	select {
	case r.Force <- struct{}{}:
	default:
	}
}

func (r *Refresher) sweep() {
	seen := make(map[string]bool)
	for _, dir := range r.cfg.Paths {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Printf("assetindex: scan %s: %v", dir, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			seen[path] = true
			_, _ = r.idx.Validate(path)
		}
	}

	// Re-check rows the scan didn't cover so a deleted file flips invalid.
	stale := 0
	for _, e := range r.idx.Snapshot() {
		if seen[e.Path] {
			continue
		}
		if _, err := r.idx.Validate(e.Path); err != nil {
			stale++
		}
	}
	if stale > 0 {
		log.Printf("assetindex: %d entries no longer resolve on disk", stale)
	}
}
