package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Reset(limit int) error
	SetAuthority(name string) error
	Do(method, path string, body any, scope string, signers ...string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	AuditCount(eventType string) int
}

// defaultLimit keeps the limiter out of the way unless a scenario lowers it.
const defaultLimit = 1000

// RegisterSteps registers registry setup and generic response steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^a fresh marker registry$`, steps.freshRegistry)
	ctx.Step(`^a marker registry allowing (\d+) writes? per client$`, steps.limitedRegistry)
	ctx.Step(`^"([^"]*)" is the authority$`, steps.isAuthority)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^(\d+) "([^"]*)" audit events? should have been recorded$`, steps.auditCountShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) freshRegistry(_ context.Context) error {
	return s.tc.Reset(defaultLimit)
}

func (s *commonSteps) limitedRegistry(_ context.Context, limit int) error {
	return s.tc.Reset(limit)
}

func (s *commonSteps) isAuthority(_ context.Context, name string) error {
	return s.tc.SetAuthority(name)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) errorShouldBe(_ context.Context, code string) error {
	got, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if got != code {
		return fmt.Errorf("expected error %q, got %v", code, got)
	}
	return nil
}

func (s *commonSteps) auditCountShouldBe(_ context.Context, want int, eventType string) error {
	if got := s.tc.AuditCount(eventType); got != want {
		return fmt.Errorf("expected %d %s events, got %d", want, eventType, got)
	}
	return nil
}
