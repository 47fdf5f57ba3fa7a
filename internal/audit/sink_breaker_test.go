package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markers/pkg/platform/circuit"
)

type flakySink struct {
	err   error
	calls int
}

func (f *flakySink) Publish(context.Context, Event) error {
	f.calls++
	return f.err
}

func TestBreakerSink(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := &flakySink{err: errors.New("broker unavailable")}
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(2))
	sink := NewBreakerSink(next, breaker, time.Minute, logger)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	require.Error(t, sink.Publish(ctx, Event{Type: EventMarkerCreated}))
	require.Error(t, sink.Publish(ctx, Event{Type: EventMarkerCreated}))
	assert.True(t, breaker.IsOpen())

	// First publish while open probes and fails; the next is dropped.
	require.Error(t, sink.Publish(ctx, Event{Type: EventMarkerCreated}))
	require.NoError(t, sink.Publish(ctx, Event{Type: EventMarkerCreated}))
	assert.Equal(t, 3, next.calls)

	// After the probe interval a successful probe closes the breaker.
	next.err = nil
	now = now.Add(2 * time.Minute)
	require.NoError(t, sink.Publish(ctx, Event{Type: EventMarkerCreated}))
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 4, next.calls)
}
