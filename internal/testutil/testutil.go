// Package testutil holds small test helpers shared across this module's
// _test.go files: this batcher is an in-process client library, not a
// distributed worker fleet, so the helpers here stay minimal.
package testutil

import (
	"testing"
	"time"
)

// WaitFor polls cond until it returns true or timeout elapses, failing
// the test with msg on timeout.
func WaitFor(t *testing.T, cond func() bool, timeout time.Duration, tick time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatalf("WaitFor timeout: %s", msg)
}
