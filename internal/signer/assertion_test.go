package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "markers/pkg/domain-errors"
)

const testAudience = "markers-test"

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	priv := newKey(t)
	signerKey := KeyOf(priv.Public().(ed25519.PublicKey))

	t.Run("valid assertion yields signer and scope", func(t *testing.T) {
		v := NewVerifier(testAudience, time.Minute, WithReplayGuard(NewInMemoryReplayGuard()))
		token, err := Sign(priv, testAudience, Scope("create", "alice.shop"), 30*time.Second)
		require.NoError(t, err)

		a, err := v.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, signerKey, a.Signer)
		assert.Equal(t, "create:alice.shop", a.Scope)
		assert.NotEmpty(t, a.ID)
	})

	t.Run("replayed assertion rejected", func(t *testing.T) {
		v := NewVerifier(testAudience, time.Minute, WithReplayGuard(NewInMemoryReplayGuard()))
		token, err := Sign(priv, testAudience, Scope("burn", "alice.shop"), 30*time.Second)
		require.NoError(t, err)

		_, err = v.Verify(ctx, token)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience rejected", func(t *testing.T) {
		v := NewVerifier(testAudience, time.Minute)
		token, err := Sign(priv, "someone-else", Scope("create", "alice.shop"), 30*time.Second)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired assertion rejected", func(t *testing.T) {
		v := NewVerifier(testAudience, time.Minute, WithClock(func() time.Time { return time.Now().Add(time.Hour) }))
		token, err := Sign(priv, testAudience, Scope("create", "alice.shop"), 30*time.Second)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("lifetime above max age rejected", func(t *testing.T) {
		v := NewVerifier(testAudience, time.Minute)
		token, err := Sign(priv, testAudience, Scope("create", "alice.shop"), time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("issuer must match signing key", func(t *testing.T) {
		other := newKey(t)
		claims := Claims{
			Scope: Scope("create", "alice.shop"),
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    signerKey.String(),
				Audience:  jwt.ClaimStrings{testAudience},
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Second)),
				ID:        "forged",
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(other)
		require.NoError(t, err)

		_, err = NewVerifier(testAudience, time.Minute).Verify(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("HMAC tokens rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:   signerKey.String(),
			Audience: jwt.ClaimStrings{testAudience},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = NewVerifier(testAudience, time.Minute).Verify(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestScopedSet(t *testing.T) {
	a, b := KeyOf(newKey(t).Public().(ed25519.PublicKey)), KeyOf(newKey(t).Public().(ed25519.PublicKey))
	ctx := WithAssertions(context.Background(), []Assertion{
		{Signer: a, Scope: "burn:alice.shop"},
		{Signer: b, Scope: "burn:bob.shop"},
	})

	set := ScopedSet(ctx, Scope("burn", "alice.shop"))
	assert.True(t, set.Has(a))
	assert.False(t, set.Has(b))
	assert.Equal(t, 1, set.Len())

	assert.Equal(t, 0, ScopedSet(context.Background(), "burn:alice.shop").Len())
}

func TestInMemoryReplayGuard_ExpiredEntriesAreSwept(t *testing.T) {
	g := NewInMemoryReplayGuard()
	now := time.Now()
	g.now = func() time.Time { return now }

	require.NoError(t, g.Claim(context.Background(), "jti-1", now.Add(time.Second)))
	assert.ErrorIs(t, g.Claim(context.Background(), "jti-1", now.Add(time.Second)), ErrReplayed)

	now = now.Add(2 * time.Second)
	assert.NoError(t, g.Claim(context.Background(), "jti-1", now.Add(time.Second)))
}
