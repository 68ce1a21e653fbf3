package registry

import (
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAs(owner string) error
	ClearCredentials()
	RecordID(alias string) string
	POST(path string, body interface{}) error
	GET(path string) error
	Status() int
	Field(name string) (interface{}, error)
}

// RegisterSteps registers registration-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	// Registration steps
	ctx.Step(`^a registrant authenticated as "([^"]*)"$`, steps.authenticatedRegistrant)
	ctx.Step(`^I register location "([^"]*)" labeled "([^"]*)" at coordinates "([^"]*)", "([^"]*)"$`, steps.registerLocation)
	ctx.Step(`^I register location "([^"]*)" without credentials$`, steps.registerWithoutCredentials)

	// Read-side steps
	ctx.Step(`^I fetch location "([^"]*)"$`, steps.fetchLocation)
	ctx.Step(`^the response should expose a ciphertext handle$`, steps.responseExposesHandle)
	ctx.Step(`^the confidential coordinate of "([^"]*)" should stay sealed$`, steps.confidentialCoordinateStaysSealed)
	ctx.Step(`^location "([^"]*)" should not exist$`, steps.locationShouldNotExist)
}

type registrySteps struct {
	tc TestContext
}

func (s *registrySteps) authenticatedRegistrant(owner string) error {
	return s.tc.AuthenticateAs(owner)
}

func (s *registrySteps) registerLocation(alias, label, latitude, longitude string) error {
	body := map[string]interface{}{
		"record_id": s.tc.RecordID(alias),
		"label":     label,
		"latitude":  latitude,
		"longitude": longitude,
	}
	return s.tc.POST("/records", body)
}

func (s *registrySteps) registerWithoutCredentials(alias string) error {
	s.tc.ClearCredentials()
	body := map[string]interface{}{
		"record_id": s.tc.RecordID(alias),
		"label":     "Anonymous claim",
		"latitude":  "0.000000",
		"longitude": "0.000000",
	}
	return s.tc.POST("/records", body)
}

func (s *registrySteps) fetchLocation(alias string) error {
	return s.tc.GET("/records/" + s.tc.RecordID(alias))
}

func (s *registrySteps) responseExposesHandle() error {
	value, err := s.tc.Field("ciphertext_handle")
	if err != nil {
		return err
	}
	handle, ok := value.(string)
	if !ok || handle == "" {
		return fmt.Errorf("expected a non-empty ciphertext handle, got %v", value)
	}
	return nil
}

func (s *registrySteps) confidentialCoordinateStaysSealed(alias string) error {
	if err := s.tc.GET("/records/" + s.tc.RecordID(alias)); err != nil {
		return err
	}
	if s.tc.Status() != http.StatusOK {
		return fmt.Errorf("expected status %d fetching the record, got %d", http.StatusOK, s.tc.Status())
	}
	status, err := s.tc.Field("status")
	if err != nil {
		return err
	}
	if status != "registered" {
		return fmt.Errorf("expected record status registered, got %v", status)
	}
	if _, err := s.tc.Field("revealed_value"); err == nil {
		return fmt.Errorf("revealed_value must not be present before a verified reveal")
	}
	return nil
}

func (s *registrySteps) locationShouldNotExist(alias string) error {
	if err := s.tc.GET("/records/" + s.tc.RecordID(alias)); err != nil {
		return err
	}
	if s.tc.Status() != http.StatusNotFound {
		return fmt.Errorf("expected status %d, got %d", http.StatusNotFound, s.tc.Status())
	}
	return nil
}
