package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"markers/pkg/platform/circuit"
)

// BreakerSink stops hammering a failing sink. While the breaker is open events
// are logged and dropped, except for one probe per probeInterval whose outcome
// decides when the breaker closes again.
type BreakerSink struct {
	next          Sink
	breaker       *circuit.Breaker
	logger        *slog.Logger
	probeInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

func NewBreakerSink(next Sink, breaker *circuit.Breaker, probeInterval time.Duration, logger *slog.Logger) *BreakerSink {
	return &BreakerSink{
		next:          next,
		breaker:       breaker,
		logger:        logger,
		probeInterval: probeInterval,
		now:           time.Now,
	}
}

func (s *BreakerSink) Publish(ctx context.Context, event Event) error {
	if s.breaker.IsOpen() && !s.probeDue() {
		s.logger.WarnContext(ctx, "audit sink circuit open, dropping event",
			"breaker", s.breaker.Name(),
			"event_id", event.ID.String(),
			"type", string(event.Type),
		)
		return nil
	}

	if err := s.next.Publish(ctx, event); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.ErrorContext(ctx, "audit sink circuit opened", "breaker", s.breaker.Name(), "error", err.Error())
		}
		return err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "audit sink circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}

func (s *BreakerSink) probeDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastProbe) < s.probeInterval {
		return false
	}
	s.lastProbe = now
	return true
}
