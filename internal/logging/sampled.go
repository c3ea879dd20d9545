// Package logging provides the rate-sampled logger used for the
// frame-level-corruption and transient-upstream-loss error classes:
// each named site logs at most a small fraction of its occurrences so
// a sustained issue cannot drown out other signals. Built on
// golang.org/x/time/rate.Sometimes, the idiomatic stdlib-adjacent primitive
// for exactly this "log occasionally, not every time" shape.
package logging

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Sampler logs at most once per Interval for a given site, which
// approximates "sample rate <= 10%" for event streams firing far more often
// than once per Interval (a 21.333ms PCM tick stream logging at most once
// per 250ms is well under 10%).
type Sampler struct {
	mu    sync.Mutex
	sites map[string]*rate.Sometimes
	every time.Duration
}

// NewSampler returns a Sampler that allows each distinct site at most one
// log line per interval. interval defaults to 250ms if <= 0.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Sampler{sites: make(map[string]*rate.Sometimes), every: interval}
}

// Printf logs format/args under site's rate limit. Safe for concurrent use
// across goroutines and across many distinct sites.
func (s *Sampler) Printf(site, format string, args ...any) {
	s.someFor(site).Do(func() { log.Printf(format, args...) })
}

func (s *Sampler) someFor(site string) *rate.Sometimes {
	s.mu.Lock()
	defer s.mu.Unlock()
	some, ok := s.sites[site]
	if !ok {
		some = &rate.Sometimes{Interval: s.every}
		s.sites[site] = some
	}
	return some
}
