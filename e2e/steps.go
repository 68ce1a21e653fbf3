package e2e

import (
	"github.com/cucumber/godog"

	"geoseal/e2e/steps/common"
	"geoseal/e2e/steps/registry"
	"geoseal/e2e/steps/reveal"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (status and response-field assertions)
	common.RegisterSteps(ctx, tc)

	// Register registration-specific steps
	registry.RegisterSteps(ctx, tc)

	// Register reveal-specific steps
	reveal.RegisterSteps(ctx, tc)
}
