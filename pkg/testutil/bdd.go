// Package testutil holds helpers shared by tests across packages.
package testutil

import "testing"

// Given, When, and Then run one named step of a scenario as a subtest, so
// `go test -v` reads like the scenario it exercises. Steps run sequentially
// and share the enclosing test's state; a failed Require inside one step
// stops that step but not the scenario, so steps that cannot proceed after
// a failure should guard on it.
func Given(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+step, fn)
}

// When names an action step. See Given.
func When(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+step, fn)
}

// Then names an assertion step. See Given.
func Then(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+step, fn)
}
