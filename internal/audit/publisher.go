package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"markers/pkg/requestcontext"
)

// Sink receives enriched events.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher enriches events with request metadata, logs them and hands them to
// the sink. A nil sink makes the publisher log-only.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
}

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{sink: sink, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	client := requestcontext.Client(ctx)
	if event.ClientIP == "" {
		event.ClientIP = client.IP
	}
	if event.UserAgent == "" && client.Browser != "" {
		event.UserAgent = client.Browser + "/" + client.OS
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, string(event.Type),
			"log_type", "audit",
			"request_id", event.RequestID,
			"domain", event.Domain,
			"address", event.Address,
			"reason", event.Reason,
		)
	}
	if p.sink == nil {
		return nil
	}
	return p.sink.Publish(ctx, event)
}
