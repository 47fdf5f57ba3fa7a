package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markers/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates an ID when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagates caller ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "abc-123", seen)
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("domain=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientMetadata(t *testing.T) {
	var meta requestcontext.ClientMetadata
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	h := ClientMetadata(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta = requestcontext.Client(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:41000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", meta.IP)
	assert.Equal(t, "Firefox", meta.Browser)
	assert.False(t, meta.Bot)
}

func TestClientIPFromRequest(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trusted []netip.Prefix
		want    string
	}{
		{
			name:    "untrusted peer cannot spoof forwarded for",
			remote:  "198.51.100.9:5000",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			trusted: trusted,
			want:    "198.51.100.9",
		},
		{
			name:    "untrusted peer cannot spoof real ip",
			remote:  "198.51.100.9:5000",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			trusted: trusted,
			want:    "198.51.100.9",
		},
		{
			name:    "no trusted proxies ignores headers",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:    "10.0.0.2",
		},
		{
			name:    "trusted proxy chain yields first untrusted hop from the right",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "192.0.2.1, 203.0.113.7, 10.1.1.1"},
			trusted: trusted,
			want:    "203.0.113.7",
		},
		{
			name:    "trusted proxy with real ip header",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Real-IP": " 203.0.113.8 "},
			trusted: trusted,
			want:    "203.0.113.8",
		},
		{
			name:    "trusted proxy with garbage header falls back to peer",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "not-an-ip"},
			trusted: trusted,
			want:    "10.0.0.2",
		},
		{
			name:   "ipv6 peer",
			remote: "[2001:db8::1]:443",
			want:   "2001:db8::1",
		},
		{
			name:    "ipv6 trusted proxy",
			remote:  "[fd00::5]:443",
			headers: map[string]string{"X-Forwarded-For": "2001:db8::2"},
			trusted: trusted,
			want:    "2001:db8::2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req, tt.trusted))
		})
	}
}

func TestLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
