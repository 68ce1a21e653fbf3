package reveal

import (
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	RecordID(alias string) string
	POST(path string, body interface{}) error
	Status() int
}

// RegisterSteps registers reveal-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &revealSteps{tc: tc}

	ctx.Step(`^location "([^"]*)" labeled "([^"]*)" registered at coordinates "([^"]*)", "([^"]*)"$`, steps.locationRegistered)
	ctx.Step(`^location "([^"]*)" has been revealed$`, steps.locationRevealed)
	ctx.Step(`^I reveal location "([^"]*)"$`, steps.revealLocation)
}

type revealSteps struct {
	tc TestContext
}

// locationRegistered is the Given form of registration: it fails the scenario
// on anything but a committed write, so reveal steps start from known state.
func (s *revealSteps) locationRegistered(alias, label, latitude, longitude string) error {
	body := map[string]interface{}{
		"record_id": s.tc.RecordID(alias),
		"label":     label,
		"latitude":  latitude,
		"longitude": longitude,
	}
	if err := s.tc.POST("/records", body); err != nil {
		return err
	}
	if s.tc.Status() != http.StatusCreated {
		return fmt.Errorf("expected registration to return %d, got %d", http.StatusCreated, s.tc.Status())
	}
	return nil
}

func (s *revealSteps) locationRevealed(alias string) error {
	if err := s.revealLocation(alias); err != nil {
		return err
	}
	if s.tc.Status() != http.StatusOK {
		return fmt.Errorf("expected reveal to return %d, got %d", http.StatusOK, s.tc.Status())
	}
	return nil
}

func (s *revealSteps) revealLocation(alias string) error {
	return s.tc.POST("/records/"+s.tc.RecordID(alias)+"/reveal", nil)
}
