package testutil

import "testing"

// Given, When, and Then wrap t.Run with a spoken prefix so nested test output
// reads as a scenario, without pulling in a BDD framework.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

func step(t *testing.T, prefix, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(prefix+" "+desc, fn)
}
