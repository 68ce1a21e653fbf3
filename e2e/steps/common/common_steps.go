package common

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Status() int
	ErrorCode() (string, error)
	Field(name string) (interface{}, error)
	NumberField(name string) (int64, error)
}

// RegisterSteps registers generic response assertions shared by every feature
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be the number (-?\d+)$`, steps.fieldShouldBeNumber)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) responseStatusShouldBe(want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(want string) error {
	code, err := s.tc.ErrorCode()
	if err != nil {
		return err
	}
	if code != want {
		return fmt.Errorf("expected error code %q, got %q", want, code)
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(name, want string) error {
	value, err := s.tc.Field(name)
	if err != nil {
		return err
	}
	got, ok := value.(string)
	if !ok {
		return fmt.Errorf("field %q is %T, not a string", name, value)
	}
	if got != want {
		return fmt.Errorf("expected field %q to be %q, got %q", name, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNumber(name string, want int64) error {
	got, err := s.tc.NumberField(name)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected field %q to be %d, got %d", name, want, got)
	}
	return nil
}
