// Package ratelimit bounds how many mutating requests a single client may issue
// within a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest hit leaves the window.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Window is an in-memory sliding window keyed by client. It is not shared
// across replicas.
type Window struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a hit for key when it fits under the limit.
func (w *Window) Allow(key string) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	hits := prune(w.buckets[key], now.Add(-w.window))
	if len(hits) >= w.limit {
		w.buckets[key] = hits
		return Result{Allowed: false, Limit: w.limit, ResetAt: hits[0].Add(w.window)}
	}
	hits = append(hits, now)
	w.buckets[key] = hits
	return Result{
		Allowed:   true,
		Limit:     w.limit,
		Remaining: w.limit - len(hits),
		ResetAt:   hits[0].Add(w.window),
	}
}

// Sweep drops keys whose hits have all expired.
func (w *Window) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	removed := 0
	for key, hits := range w.buckets {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(w.buckets, key)
			removed++
			continue
		}
		w.buckets[key] = hits
	}
	return removed
}

// prune drops timestamps at or before cutoff. hits is ordered oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}
