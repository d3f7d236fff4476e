// Package assert validates recorded responses.
//
// An Asserter runs in one of two modes. In Hard mode the first failure
// ends the checking: every later check on the same Asserter is a no-op
// until Flush. In Soft mode every check runs and all failures are returned
// together by Err.
package assert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"restqa/internal/client"
)

type Mode int

const (
	Hard Mode = iota
	Soft
)

func (m Mode) String() string {
	if m == Soft {
		return "soft"
	}
	return "hard"
}

// ParseMode accepts "hard", "soft" or the empty string (hard).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hard":
		return Hard, nil
	case "soft":
		return Soft, nil
	}
	return Hard, fmt.Errorf("unknown assertion mode %q", s)
}

// ErrNoResponse is recorded when a check runs before any dispatch.
var ErrNoResponse = errors.New("no response recorded")

// Error aggregates the failures of one Asserter.
type Error struct {
	Mode     Mode
	Failures []error
}

func (e *Error) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d assertions failed:", len(e.Failures))
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, f)
	}
	return b.String()
}

func (e *Error) Unwrap() []error { return e.Failures }

type Asserter struct {
	mode     Mode
	failures []error
}

func New(mode Mode) *Asserter { return &Asserter{mode: mode} }

func (a *Asserter) Mode() Mode { return a.mode }

// Active reports whether checks still run.
func (a *Asserter) Active() bool { return a.mode == Soft || len(a.failures) == 0 }

func (a *Asserter) Failed() bool { return len(a.failures) > 0 }

func (a *Asserter) Failures() []error { return append([]error(nil), a.failures...) }

// Fail records err unless the Asserter already stopped.
func (a *Asserter) Fail(err error) bool {
	if a.Active() {
		a.failures = append(a.failures, err)
	}
	return false
}

func (a *Asserter) Failf(format string, args ...any) bool {
	return a.Fail(fmt.Errorf(format, args...))
}

// Check records a failure described by format when ok is false.
func (a *Asserter) Check(ok bool, format string, args ...any) bool {
	if !a.Active() {
		return false
	}
	if !ok {
		return a.Failf(format, args...)
	}
	return true
}

// Err returns nil or an *Error carrying every recorded failure.
func (a *Asserter) Err() error {
	if len(a.failures) == 0 {
		return nil
	}
	return &Error{Mode: a.mode, Failures: a.Failures()}
}

// Flush returns Err and clears the recorded failures.
func (a *Asserter) Flush() error {
	err := a.Err()
	a.failures = nil
	return err
}

func (a *Asserter) ready(resp *client.Response) bool {
	if !a.Active() {
		return false
	}
	if resp == nil {
		return a.Fail(fmt.Errorf("%w: dispatch a request before asserting on it", ErrNoResponse))
	}
	return true
}

// Response fails when nothing was dispatched yet.
func (a *Asserter) Response(resp *client.Response) bool { return a.ready(resp) }

func (a *Asserter) Status(resp *client.Response, want int) bool {
	if !a.ready(resp) {
		return false
	}
	return a.Check(resp.StatusCode == want,
		"%s %s: expected status %d, got %d", resp.Method, resp.URL, want, resp.StatusCode)
}

// StatusIn passes when the status is any member of set.
func (a *Asserter) StatusIn(resp *client.Response, set StatusSet) bool {
	if !a.ready(resp) {
		return false
	}
	return a.Check(set.Contains(resp.StatusCode),
		"%s %s: expected status in %s, got %d", resp.Method, resp.URL, set, resp.StatusCode)
}

func (a *Asserter) Header(resp *client.Response, name, want string) bool {
	return a.header(resp, name, want, "equal", func(got string) bool { return got == want })
}

func (a *Asserter) HeaderContains(resp *client.Response, name, part string) bool {
	return a.header(resp, name, part, "contain", func(got string) bool { return strings.Contains(got, part) })
}

func (a *Asserter) HeaderPrefix(resp *client.Response, name, prefix string) bool {
	return a.header(resp, name, prefix, "start with", func(got string) bool { return strings.HasPrefix(got, prefix) })
}

func (a *Asserter) header(resp *client.Response, name, want, verb string, match func(string) bool) bool {
	if !a.ready(resp) {
		return false
	}
	values := resp.Header.Values(name)
	if len(values) == 0 {
		return a.Failf("header %s: not present", name)
	}
	for _, v := range values {
		if match(v) {
			return true
		}
	}
	return a.Failf("header %s: %q does not %s %q", name, strings.Join(values, ", "), verb, want)
}

// Latency fails when the recorded elapsed time exceeds bound.
func (a *Asserter) Latency(resp *client.Response, bound time.Duration) bool {
	if !a.ready(resp) {
		return false
	}
	return a.Check(resp.Elapsed <= bound,
		"%s %s: took %dms, bound is %dms", resp.Method, resp.URL, resp.Elapsed.Milliseconds(), bound.Milliseconds())
}
