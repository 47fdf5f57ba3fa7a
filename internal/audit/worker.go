package audit

import (
	"context"
	"log/slog"
	"time"
)

const drainTimeout = 5 * time.Second

// AsyncSink decouples request latency from a slow sink. Publish enqueues and
// returns; Run drains the queue into the wrapped sink until ctx is done.
type AsyncSink struct {
	next   Sink
	inbox  chan Event
	logger *slog.Logger
}

func NewAsyncSink(next Sink, buffer int, logger *slog.Logger) *AsyncSink {
	return &AsyncSink{next: next, inbox: make(chan Event, buffer), logger: logger}
}

// Publish drops the event with a warning when the queue is full.
func (s *AsyncSink) Publish(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
	default:
		s.logger.WarnContext(ctx, "audit queue full, dropping event",
			"event_id", event.ID.String(),
			"type", string(event.Type),
		)
	}
	return nil
}

func (s *AsyncSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case event := <-s.inbox:
			if err := s.next.Publish(ctx, event); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish audit event",
					"event_id", event.ID.String(),
					"error", err.Error(),
				)
			}
		}
	}
}

// drain flushes what is already queued, bounded by drainTimeout.
func (s *AsyncSink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-s.inbox:
			if err := s.next.Publish(ctx, event); err != nil {
				s.logger.Error("failed to publish audit event during shutdown",
					"event_id", event.ID.String(),
					"error", err.Error(),
				)
			}
		default:
			return
		}
	}
}
