// Package signer turns per-request signature assertions into the verified
// signer set that marker operations check identities against.
package signer

import (
	"context"
	"sort"

	"markers/pkg/domain"
)

// Set is an immutable collection of verified signer keys.
type Set struct {
	keys map[domain.Key]struct{}
}

func NewSet(keys ...domain.Key) Set {
	s := Set{keys: make(map[domain.Key]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Has reports whether k signed the request.
func (s Set) Has(k domain.Key) bool {
	_, ok := s.keys[k]
	return ok
}

func (s Set) Len() int {
	return len(s.keys)
}

// Keys returns the signers in a stable order.
func (s Set) Keys() []domain.Key {
	out := make([]domain.Key, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

type contextKeyAssertions struct{}

// WithAssertions stores verified assertions on ctx.
func WithAssertions(ctx context.Context, assertions []Assertion) context.Context {
	return context.WithValue(ctx, contextKeyAssertions{}, assertions)
}

// AssertionsFromContext returns the assertions verified by the middleware.
func AssertionsFromContext(ctx context.Context) []Assertion {
	if a, ok := ctx.Value(contextKeyAssertions{}).([]Assertion); ok {
		return a
	}
	return nil
}

// ScopedSet builds the signer set from the assertions on ctx that were issued
// for scope. Assertions for other operations or domains are ignored.
func ScopedSet(ctx context.Context, scope string) Set {
	var keys []domain.Key
	for _, a := range AssertionsFromContext(ctx) {
		if a.Scope == scope {
			keys = append(keys, a.Signer)
		}
	}
	return NewSet(keys...)
}

// Scope formats the scope claim an assertion must carry for op on name.
func Scope(op, name string) string {
	return op + ":" + name
}
