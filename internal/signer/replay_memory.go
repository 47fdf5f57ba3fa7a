package signer

import (
	"context"
	"sync"
	"time"
)

// InMemoryReplayGuard is the single-instance replay guard. Expired entries are
// swept lazily on each claim.
type InMemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewInMemoryReplayGuard() *InMemoryReplayGuard {
	return &InMemoryReplayGuard{seen: make(map[string]time.Time), now: time.Now}
}

func (g *InMemoryReplayGuard) Claim(_ context.Context, id string, until time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.seen {
		if !exp.After(now) {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[id]; ok {
		return ErrReplayed
	}
	g.seen[id] = until
	return nil
}
