package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
)

// HeaderName carries one assertion per signer; the header repeats for multiple signers.
const HeaderName = "X-Signer-Assertion"

// Claims is the payload of a signer assertion. The issuer is the signer's
// base58 public key and the assertion is signed with the matching private key.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Assertion is a verified statement that Signer approved Scope.
type Assertion struct {
	Signer    domain.Key
	Scope     string
	ID        string
	ExpiresAt time.Time
}

// ReplayGuard records assertion IDs so each one is accepted at most once.
type ReplayGuard interface {
	Claim(ctx context.Context, id string, until time.Time) error
}

// ErrReplayed is returned by a ReplayGuard when id has already been claimed.
var ErrReplayed = errors.New("assertion already used")

// Verifier checks assertion signatures, audience, lifetime and replay.
type Verifier struct {
	audience string
	maxAge   time.Duration
	replay   ReplayGuard
	now      func() time.Time
}

type VerifierOption func(*Verifier)

func WithReplayGuard(g ReplayGuard) VerifierOption {
	return func(v *Verifier) {
		v.replay = g
	}
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(audience string, maxAge time.Duration, opts ...VerifierOption) *Verifier {
	v := &Verifier{audience: audience, maxAge: maxAge, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses token and returns the assertion it carries.
func (v *Verifier) Verify(ctx context.Context, token string) (*Assertion, error) {
	var signer domain.Key
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		iss, err := t.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		signer, err = domain.ParseKey(iss)
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(signer[:]), nil
	},
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "signer assertion has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid signer assertion")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid signer assertion")
	}
	if claims.Scope == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "signer assertion is missing scope, jti or iat")
	}
	if v.maxAge > 0 && claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.maxAge {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "signer assertion lifetime too long")
	}

	if v.replay != nil {
		if err := v.replay.Claim(ctx, signer.String()+":"+claims.ID, claims.ExpiresAt.Time); err != nil {
			if errors.Is(err, ErrReplayed) {
				return nil, dErrors.New(dErrors.CodeUnauthorized, "signer assertion already used")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record signer assertion")
		}
	}

	return &Assertion{
		Signer:    signer,
		Scope:     claims.Scope,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Sign produces an assertion for scope signed by priv. Clients and tests use it
// to build the X-Signer-Assertion header.
func Sign(priv ed25519.PrivateKey, audience, scope string, ttl time.Duration) (string, error) {
	var pub domain.Key
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    pub.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(priv)
}

// KeyOf returns the registry key of an Ed25519 public key.
func KeyOf(pub ed25519.PublicKey) domain.Key {
	var k domain.Key
	copy(k[:], pub)
	return k
}
