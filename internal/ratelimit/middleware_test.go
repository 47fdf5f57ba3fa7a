package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markers/pkg/requestcontext"
)

func newLimited(limit int) http.Handler {
	mw := New(NewWindow(limit, time.Minute), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func fromIP(method, ip string) *http.Request {
	req := httptest.NewRequest(method, "/markers", nil)
	return req.WithContext(requestcontext.WithClient(req.Context(), requestcontext.ClientMetadata{IP: ip}))
}

func TestMiddleware(t *testing.T) {
	t.Run("post over the limit is rejected with 429", func(t *testing.T) {
		h := newLimited(1)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, fromIP(http.MethodPost, "192.0.2.1"))
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, fromIP(http.MethodPost, "192.0.2.1"))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Contains(t, rr.Body.String(), "rate_limited")
	})

	t.Run("reads are never limited", func(t *testing.T) {
		h := newLimited(1)
		for range 3 {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, fromIP(http.MethodGet, "192.0.2.2"))
			assert.Equal(t, http.StatusNoContent, rr.Code)
			assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("other clients keep their own budget", func(t *testing.T) {
		h := newLimited(1)
		h.ServeHTTP(httptest.NewRecorder(), fromIP(http.MethodPost, "192.0.2.3"))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, fromIP(http.MethodPost, "192.0.2.4"))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
