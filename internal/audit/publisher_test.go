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

	"markers/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	sink := NewInMemorySink()
	pub := NewPublisher(sink, discardLogger())

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	ctx = requestcontext.WithRequestID(ctx, "req-7")
	ctx = requestcontext.WithClient(ctx, requestcontext.ClientMetadata{IP: "198.51.100.4", Browser: "Chrome", OS: "Linux"})

	require.NoError(t, pub.Emit(ctx, Event{Type: EventMarkerCreated, Domain: "alice.shop"}))

	events := sink.OfType(EventMarkerCreated)
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, "req-7", e.RequestID)
	assert.Equal(t, "198.51.100.4", e.ClientIP)
	assert.Equal(t, "Chrome/Linux", e.UserAgent)
}

func TestPublisher_NilSinkIsLogOnly(t *testing.T) {
	pub := NewPublisher(nil, discardLogger())
	assert.NoError(t, pub.Emit(context.Background(), Event{Type: EventMarkerBurned}))
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func TestAsyncSink(t *testing.T) {
	t.Run("delivers queued events and drains on shutdown", func(t *testing.T) {
		inner := NewInMemorySink()
		async := NewAsyncSink(inner, 4, discardLogger())

		for range 3 {
			require.NoError(t, async.Publish(context.Background(), Event{Type: EventMarkerBurned}))
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, async.Run(ctx))
		assert.Len(t, inner.Events(), 3)
	})

	t.Run("full queue drops without blocking", func(t *testing.T) {
		async := NewAsyncSink(NewInMemorySink(), 1, discardLogger())
		require.NoError(t, async.Publish(context.Background(), Event{}))
		require.NoError(t, async.Publish(context.Background(), Event{}))
		assert.Len(t, async.inbox, 1)
	})

	t.Run("sink errors are logged not returned", func(t *testing.T) {
		inner := &failingSink{}
		async := NewAsyncSink(inner, 2, discardLogger())
		require.NoError(t, async.Publish(context.Background(), Event{}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, async.Run(ctx))
		assert.Equal(t, 1, inner.calls)
	})
}
