// Package harness routes helper failures either into the surrounding test
// (when a test runner is driving the helper) or back to the caller as an
// ordinary error.
package harness

import "fmt"

// Reporter is the subset of testing.TB the helpers need. *testing.T and
// *testing.B satisfy it.
type Reporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Fail reports err through r when r is non-nil and returns err unchanged.
// With a *testing.T reporter Fatalf stops the calling goroutine, so callers
// only observe the returned error when no reporter is configured.
func Fail(r Reporter, err error) error {
	if err == nil {
		return nil
	}
	if r != nil {
		r.Helper()
		r.Fatalf("%v", err)
	}
	return err
}

// Recorder is a Reporter that records failures instead of aborting. It is
// used where a caller wants to collect failures, and in tests.
type Recorder struct {
	Failures []string
}

func (r *Recorder) Helper() {}

func (r *Recorder) Fatalf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Failed reports whether at least one failure was recorded.
func (r *Recorder) Failed() bool { return len(r.Failures) > 0 }
