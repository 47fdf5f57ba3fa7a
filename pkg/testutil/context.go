package testutil

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"markers/internal/signer"
	"markers/pkg/domain"
)

// WithSigners places already-verified assertions for scope on the request
// context. This simulates what the assertion middleware does for signed requests.
func WithSigners(req *http.Request, scope string, keys ...domain.Key) *http.Request {
	assertions := signer.AssertionsFromContext(req.Context())
	for _, k := range keys {
		assertions = append(assertions, signer.Assertion{Signer: k, Scope: scope})
	}
	return req.WithContext(signer.WithAssertions(req.Context(), assertions))
}

// SignRequest attaches a freshly signed assertion header for scope.
func SignRequest(t *testing.T, req *http.Request, priv ed25519.PrivateKey, audience, scope string) *http.Request {
	t.Helper()
	token, err := signer.Sign(priv, audience, scope, time.Minute)
	require.NoError(t, err, "failed to sign assertion")
	req.Header.Add(signer.HeaderName, token)
	return req
}

// NewSigner generates an Ed25519 keypair and returns it with its registry key.
func NewSigner(t *testing.T) (domain.Key, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err, "failed to generate signer key")
	return signer.KeyOf(pub), priv
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
