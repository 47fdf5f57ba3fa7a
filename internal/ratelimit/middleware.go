package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "markers/pkg/domain-errors"
	"markers/pkg/platform/httputil"
	"markers/pkg/requestcontext"
)

// Middleware limits mutating requests per client IP. Reads pass through.
type Middleware struct {
	window *Window
	logger *slog.Logger
}

func New(window *Window, logger *slog.Logger) *Middleware {
	return &Middleware{window: window, logger: logger}
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
// It must run after the client metadata middleware.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		ip := requestcontext.Client(ctx).IP
		if ip == "" {
			ip = "unknown"
		}

		result := m.window.Allow(ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		if !result.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(m.window.now())))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunSweeper evicts idle clients every interval until ctx is done.
func (m *Middleware) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.window.Sweep(); n > 0 {
				m.logger.DebugContext(ctx, "rate limit buckets evicted", "count", n)
			}
		}
	}
}
