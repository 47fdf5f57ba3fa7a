package markers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cucumber/godog"

	"markers/internal/marker/service"
	"markers/internal/signer"
	"markers/pkg/domain"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Actor(name string) (domain.Key, error)
	Authority() string
	IssueToken(ctx context.Context, name string) error
	MoveToken(ctx context.Context, from, to string) error
	Mint(name string) (domain.MintRef, bool)
	Account(name string) (domain.AccountRef, bool)
	Do(method, path string, body any, scope string, signers ...string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
}

// RegisterSteps registers marker lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &markerSteps{tc: tc}

	// Custody
	ctx.Step(`^"([^"]*)" holds a possession token$`, steps.holdsToken)
	ctx.Step(`^the token moves from "([^"]*)" to "([^"]*)"$`, steps.tokenMoves)

	// Lifecycle
	ctx.Step(`^"([^"]*)" creates a marker for "([^"]*)"$`, steps.createUngated)
	ctx.Step(`^"([^"]*)" creates a gated marker for "([^"]*)"$`, steps.createGated)
	ctx.Step(`^the authority transfers "([^"]*)" to "([^"]*)"$`, steps.transfer)
	ctx.Step(`^"([^"]*)" burns "([^"]*)" with the token$`, steps.burnWithToken)
	ctx.Step(`^"([^"]*)" burns "([^"]*)" alone$`, steps.burnWithoutAuthority)
	ctx.Step(`^the authority burns the orphaned marker for "([^"]*)"$`, steps.burnOrphan)

	// Reads
	ctx.Step(`^I look up the address of "([^"]*)"$`, steps.lookupAddress)
	ctx.Step(`^the address should be "([^"]*)" with bump (\d+)$`, steps.addressShouldBe)
	ctx.Step(`^the marker for "([^"]*)" should be owned by "([^"]*)"$`, steps.ownedBy)
	ctx.Step(`^no marker should exist for "([^"]*)"$`, steps.noMarker)
	ctx.Step(`^the deposit of (\d+) should return to the authority$`, steps.reclaimedToAuthority)
}

type markerSteps struct {
	tc TestContext
}

func markerPath(name, suffix string) string {
	return "/markers/" + url.PathEscape(name) + suffix
}

func (s *markerSteps) holdsToken(ctx context.Context, name string) error {
	return s.tc.IssueToken(ctx, name)
}

func (s *markerSteps) tokenMoves(ctx context.Context, from, to string) error {
	return s.tc.MoveToken(ctx, from, to)
}

func (s *markerSteps) createBody(name, payer string) (map[string]any, error) {
	payerKey, err := s.tc.Actor(payer)
	if err != nil {
		return nil, err
	}
	authority, err := s.tc.Actor(s.tc.Authority())
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"domain":    name,
		"payer":     payerKey.String(),
		"authority": authority.String(),
	}, nil
}

func (s *markerSteps) createUngated(_ context.Context, payer, name string) error {
	body, err := s.createBody(name, payer)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/markers", body, signer.Scope(service.OpCreate, name), payer, s.tc.Authority())
}

func (s *markerSteps) createGated(_ context.Context, payer, name string) error {
	mint, ok := s.tc.Mint(payer)
	if !ok {
		return fmt.Errorf("%s holds no token", payer)
	}
	acct, _ := s.tc.Account(payer)
	body, err := s.createBody(name, payer)
	if err != nil {
		return err
	}
	body["mint"] = mint.String()
	body["token_account"] = acct.String()
	return s.tc.Do(http.MethodPost, "/markers", body, signer.Scope(service.OpCreate, name), payer, s.tc.Authority())
}

func (s *markerSteps) transfer(_ context.Context, name, to string) error {
	newOwner, err := s.tc.Actor(to)
	if err != nil {
		return err
	}
	body := map[string]any{"new_owner": newOwner.String()}
	if acct, ok := s.tc.Account(to); ok {
		body["token_account"] = acct.String()
	}
	return s.tc.Do(http.MethodPost, markerPath(name, "/owner"), body,
		signer.Scope(service.OpUpdateOwner, name), s.tc.Authority())
}

func (s *markerSteps) burnBody(holder string) map[string]any {
	body := map[string]any{}
	if acct, ok := s.tc.Account(holder); ok {
		body["token_account"] = acct.String()
	}
	return body
}

func (s *markerSteps) burnWithToken(_ context.Context, holder, name string) error {
	return s.tc.Do(http.MethodPost, markerPath(name, "/burn"), s.burnBody(holder),
		signer.Scope(service.OpBurn, name), s.tc.Authority(), holder)
}

func (s *markerSteps) burnWithoutAuthority(_ context.Context, holder, name string) error {
	return s.tc.Do(http.MethodPost, markerPath(name, "/burn"), s.burnBody(holder),
		signer.Scope(service.OpBurn, name), holder)
}

func (s *markerSteps) burnOrphan(_ context.Context, name string) error {
	return s.tc.Do(http.MethodPost, markerPath(name, "/burn-orphan"), nil,
		signer.Scope(service.OpBurnOrphan, name), s.tc.Authority())
}

func (s *markerSteps) lookupAddress(_ context.Context, name string) error {
	return s.tc.Do(http.MethodGet, markerPath(name, "/address"), nil, "")
}

func (s *markerSteps) addressShouldBe(_ context.Context, want string, bump int) error {
	got, err := s.tc.GetResponseField("address")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected address %s, got %v", want, got)
	}
	gotBump, err := s.tc.GetResponseField("bump")
	if err != nil {
		return err
	}
	if gotBump != float64(bump) {
		return fmt.Errorf("expected bump %d, got %v", bump, gotBump)
	}
	return nil
}

func (s *markerSteps) ownedBy(_ context.Context, name, owner string) error {
	if err := s.tc.Do(http.MethodGet, markerPath(name, ""), nil, ""); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("expected marker for %s, got status %d", name, status)
	}
	want, err := s.tc.Actor(owner)
	if err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("owner")
	if err != nil {
		return err
	}
	if got != want.String() {
		return fmt.Errorf("expected owner %s, got %v", want, got)
	}
	return nil
}

func (s *markerSteps) noMarker(_ context.Context, name string) error {
	if err := s.tc.Do(http.MethodGet, markerPath(name, ""), nil, ""); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusNotFound {
		return fmt.Errorf("expected no marker for %s, got status %d", name, status)
	}
	return nil
}

func (s *markerSteps) reclaimedToAuthority(_ context.Context, amount int) error {
	authority, err := s.tc.Actor(s.tc.Authority())
	if err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("beneficiary")
	if err != nil {
		return err
	}
	if got != authority.String() {
		return fmt.Errorf("expected beneficiary %s, got %v", authority, got)
	}
	gotAmount, err := s.tc.GetResponseField("amount")
	if err != nil {
		return err
	}
	if gotAmount != float64(amount) {
		return fmt.Errorf("expected reclaim of %d, got %v", amount, gotAmount)
	}
	return nil
}
