package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"

	"markers/pkg/requestcontext"
)

// ClientMetadata extracts the client IP and a parsed User-Agent into the context
// so audit events and the rate limiter can describe who issued a request.
// Forwarding headers are believed only when the connecting peer falls inside
// one of trusted.
func ClientMetadata(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("User-Agent")
			ua := useragent.New(raw)
			browser, _ := ua.Browser()
			meta := requestcontext.ClientMetadata{
				IP:        ClientIPFromRequest(r, trusted),
				UserAgent: raw,
				Browser:   browser,
				OS:        ua.OS(),
				Bot:       ua.Bot(),
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithClient(r.Context(), meta)))
		})
	}
}

// ClientIPFromRequest returns the connecting peer's address unless that peer is
// a trusted proxy. Behind trusted proxies X-Forwarded-For is walked from the
// right and the first hop outside trusted wins; X-Real-IP is the fallback.
func ClientIPFromRequest(r *http.Request, trusted []netip.Prefix) string {
	peer, ok := remoteAddr(r.RemoteAddr)
	if !ok {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		var leftmost netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !isTrusted(hop, trusted) {
				return hop.String()
			}
			leftmost = hop
		}
		if leftmost.IsValid() {
			return leftmost.String()
		}
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peer.String()
}

func remoteAddr(addr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
