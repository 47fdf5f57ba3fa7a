package e2e

import (
	"github.com/cucumber/godog"

	"markers/e2e/steps/common"
	"markers/e2e/steps/markers"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Registry setup, raw requests and response assertions
	common.RegisterSteps(ctx, tc)

	// Marker lifecycle and custody
	markers.RegisterSteps(ctx, tc)
}
