// Package e2e drives the marker registry through its HTTP surface with
// Gherkin scenarios. Everything runs in process against the in-memory backend.
package e2e

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"markers/internal/audit"
	"markers/internal/custody"
	"markers/internal/marker"
	"markers/internal/marker/address"
	markerhandler "markers/internal/marker/handler"
	"markers/internal/marker/service"
	"markers/internal/ratelimit"
	"markers/internal/signer"
	httptransport "markers/internal/transport/http"
	"markers/pkg/domain"
)

const (
	audience  = "markers-e2e"
	programID = "7GAzi1mmd9CT3kgV8vL1RbvQJyTNYRjYfuJ7rV42vVoi"
)

type actor struct {
	key  domain.Key
	priv ed25519.PrivateKey
}

// TestContext is the per-scenario world shared by every step package.
type TestContext struct {
	router    http.Handler
	ledger    *custody.InMemoryLedger
	sink      *audit.InMemorySink
	actors    map[string]actor
	accounts  map[string]domain.AccountRef
	mints     map[string]domain.MintRef
	authority string

	lastStatus int
	lastBody   []byte
}

// Reset builds a fresh registry so scenarios never share state.
func (tc *TestContext) Reset(limit int) error {
	pid, err := domain.ParseKey(programID)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := marker.MemoryBackend(time.Second)
	tc.ledger = custody.NewInMemoryLedger()
	tc.sink = audit.NewInMemorySink()

	svc, err := service.New(backend.Store, backend.Tx, tc.ledger, address.NewDeriver(pid),
		service.WithLogger(logger),
		service.WithAuditPublisher(audit.NewPublisher(tc.sink, logger)),
	)
	if err != nil {
		return err
	}
	verifier := signer.NewVerifier(audience, time.Minute, signer.WithReplayGuard(signer.NewInMemoryReplayGuard()))
	limiter := ratelimit.New(ratelimit.NewWindow(limit, time.Minute), logger)
	handler := markerhandler.New(svc, verifier, logger, nil, markerhandler.WithRateLimit(limiter.Handler))
	tc.router = httptransport.NewRouter(nil, handler)

	tc.actors = make(map[string]actor)
	tc.accounts = make(map[string]domain.AccountRef)
	tc.mints = make(map[string]domain.MintRef)
	tc.authority = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	return nil
}

// Actor returns the named keypair, generating it on first use.
func (tc *TestContext) Actor(name string) (domain.Key, error) {
	if a, ok := tc.actors[name]; ok {
		return a.key, nil
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return domain.Key{}, err
	}
	a := actor{key: signer.KeyOf(pub), priv: priv}
	tc.actors[name] = a
	return a.key, nil
}

func (tc *TestContext) SetAuthority(name string) error {
	if _, err := tc.Actor(name); err != nil {
		return err
	}
	tc.authority = name
	return nil
}

func (tc *TestContext) Authority() string { return tc.authority }

// IssueToken mints a fresh possession token into a new account held by name.
func (tc *TestContext) IssueToken(ctx context.Context, name string) error {
	holder, err := tc.Actor(name)
	if err != nil {
		return err
	}
	issuer, err := tc.Actor(tc.authority)
	if err != nil {
		return err
	}
	mint, err := tc.ledger.CreateMint(ctx, issuer)
	if err != nil {
		return err
	}
	acct, err := tc.ledger.OpenAccount(ctx, holder, mint)
	if err != nil {
		return err
	}
	if err := tc.ledger.MintTo(ctx, mint, acct, issuer, 1); err != nil {
		return err
	}
	tc.mints[name] = mint
	tc.accounts[name] = acct
	return nil
}

// MoveToken transfers from's token into a new account held by to.
func (tc *TestContext) MoveToken(ctx context.Context, from, to string) error {
	mint, ok := tc.mints[from]
	if !ok {
		return fmt.Errorf("%s holds no token", from)
	}
	fromKey, _ := tc.Actor(from)
	toKey, err := tc.Actor(to)
	if err != nil {
		return err
	}
	acct, err := tc.ledger.OpenAccount(ctx, toKey, mint)
	if err != nil {
		return err
	}
	if err := tc.ledger.Transfer(ctx, tc.accounts[from], acct, fromKey, 1); err != nil {
		return err
	}
	tc.mints[to] = mint
	tc.accounts[to] = acct
	return nil
}

func (tc *TestContext) Mint(name string) (domain.MintRef, bool) {
	m, ok := tc.mints[name]
	return m, ok
}

func (tc *TestContext) Account(name string) (domain.AccountRef, bool) {
	a, ok := tc.accounts[name]
	return a, ok
}

// Do sends a request signed by each named actor for scope. A nil body sends
// no payload.
func (tc *TestContext) Do(method, path string, body any, scope string, signers ...string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, name := range signers {
		if _, err := tc.Actor(name); err != nil {
			return err
		}
		token, err := signer.Sign(tc.actors[name].priv, audience, scope, time.Minute)
		if err != nil {
			return fmt.Errorf("sign as %s: %w", name, err)
		}
		req.Header.Add(signer.HeaderName, token)
	}

	rr := httptest.NewRecorder()
	tc.router.ServeHTTP(rr, req)
	tc.lastStatus = rr.Code
	tc.lastBody = rr.Body.Bytes()
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField reads a top-level field from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return v, nil
}

// AuditCount counts recorded events of type t.
func (tc *TestContext) AuditCount(t string) int {
	return len(tc.sink.OfType(audit.EventType(t)))
}
