package uiflow

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every typed error in this package matches exactly one of these
// through errors.Is.
var (
	// ErrNotFound means no candidate locator matched within its timeout.
	ErrNotFound = errors.New("element not found")
	// ErrNavigationFailed means no target URL reached an arrival state.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrProvisioningFailed means a browser session could not be set up.
	ErrProvisioningFailed = errors.New("provisioning failed")
	// ErrSessionClosed is returned by operations on a released session.
	ErrSessionClosed = errors.New("session closed")
	// ErrAssertionFailed means a post-condition did not hold.
	ErrAssertionFailed = errors.New("assertion failed")
)

// NotFoundError reports the exhaustion of a candidate list.
type NotFoundError struct {
	Candidates Candidates
	Mode       Mode
	// Last is the last candidate that was tried.
	Last Locator
	// Err is the last underlying wait error, if any.
	Err error
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no %s element for %s", e.Mode, e.Candidates)
	if e.Err != nil {
		fmt.Fprintf(&b, " (last %s: %v)", e.Last, e.Err)
	}
	return b.String()
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// NavigationError reports that every navigation target was exhausted. Title
// and URL are the observed values after the last attempt, unmodified.
type NavigationError struct {
	// Target is the last attempted URL.
	Target string
	Title  string
	URL    string
	Err    error
}

func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("navigation to %q did not arrive: URL=%q, TITLE=%q", e.Target, e.URL, e.Title)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrNavigationFailed.
func (e *NavigationError) Is(target error) bool { return target == ErrNavigationFailed }

func (e *NavigationError) Unwrap() error { return e.Err }

// ProvisioningError reports a session setup failure. Stage names the step
// that failed, e.g. "credentials", "driver", "service" or "session".
type ProvisioningError struct {
	Stage string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

// Is reports whether target is ErrProvisioningFailed.
func (e *ProvisioningError) Is(target error) bool { return target == ErrProvisioningFailed }

func (e *ProvisioningError) Unwrap() error { return e.Err }

// AssertionError reports a failed post-condition.
type AssertionError struct {
	// What names the checked property, e.g. "param handoverMonths".
	What     string
	Expected string
	Actual   string
	// Context is extra diagnostic text such as the full URL.
	Context string
}

func (e *AssertionError) Error() string {
	msg := e.What
	if e.Expected != "" || e.Actual != "" {
		msg = fmt.Sprintf("%s: expected %q but got %q", e.What, e.Expected, e.Actual)
	}
	if e.Context != "" {
		msg += " in " + e.Context
	}
	return msg
}

// Is reports whether target is ErrAssertionFailed.
func (e *AssertionError) Is(target error) bool { return target == ErrAssertionFailed }

// Assertf returns an AssertionError with a formatted description when cond
// is false, and nil otherwise.
func Assertf(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return &AssertionError{What: fmt.Sprintf(format, args...)}
}
