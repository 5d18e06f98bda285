package uiflow

import (
	"errors"
	"time"

	"github.com/golang/glog"
)

// Check decides whether the browser has arrived where a flow expects it.
//
// Arrival is Gate AND (any of Signals). A nil Gate always passes; with no
// Signals the Gate alone decides. Negative heuristics such as NotErrorPage
// belong in the Gate, never in Signals.
type Check struct {
	Gate    Signal
	Signals []Signal
	// SoftPass, when true, accepts the current state even though the Check
	// itself failed. It is honoured only by a Navigator with AllowSoftPass.
	SoftPass Signal
}

// Target is one navigation attempt. Action, if set, runs after the page load
// and before the arrival wait, e.g. to click through from a home page. An
// empty URL means "act on the current page".
type Target struct {
	URL    string
	Action func(*Session) error
}

func (t Target) String() string {
	if t.URL == "" {
		return "(current page)"
	}
	return t.URL
}

// URLs returns plain navigation targets.
func URLs(urls ...string) []Target {
	ts := make([]Target, len(urls))
	for i, u := range urls {
		ts[i] = Target{URL: u}
	}
	return ts
}

// Navigator navigates a Session and verifies arrival.
type Navigator struct {
	Session  *Session
	Interval time.Duration
	// AllowSoftPass enables Check.SoftPass. It is an explicit policy set from
	// configuration, never derived from the provider.
	AllowSoftPass bool
}

// NewNavigator returns a Navigator for s.
func NewNavigator(s *Session) *Navigator {
	return &Navigator{Session: s, Interval: DefaultInterval}
}

// Evaluate performs one evaluation of check against the current state. It
// reads but never changes the page, so repeated calls on an unchanged page
// agree. Errors from signals count as false; only session errors are
// returned.
func (n *Navigator) Evaluate(check Check) (bool, error) {
	wd, err := n.Session.Driver()
	if err != nil {
		return false, err
	}
	arrived := true
	if check.Gate != nil {
		ok, err := check.Gate(wd)
		if err != nil {
			debugLog("gate: %v", err)
		}
		arrived = ok && err == nil
	}
	if arrived && len(check.Signals) > 0 {
		arrived, err = Any(check.Signals...)(wd)
		if err != nil {
			debugLog("signals: %v", err)
		}
	}
	if !arrived && n.AllowSoftPass && check.SoftPass != nil {
		if ok, err := check.SoftPass(wd); err == nil && ok {
			u, _ := wd.CurrentURL()
			glog.Warningf("accepting %s as a soft pass", u)
			return true, nil
		}
	}
	return arrived, nil
}

// Await polls check until it holds or timeout elapses, without navigating.
// It reports false on timeout.
func (n *Navigator) Await(check Check, timeout time.Duration) (bool, error) {
	var arrived bool
	err := poll(timeout, n.Interval, func() (bool, error) {
		ok, err := n.Evaluate(check)
		arrived = ok
		return ok, err
	})
	if err != nil && !errors.Is(err, errWaitTimeout) {
		return false, err
	}
	return arrived, nil
}

// NavigateAndVerify tries each target in order and returns the current URL
// after the first one that arrives. Each target is attempted at most once.
// When all are exhausted it returns a *NavigationError naming the last
// target together with the observed title and URL.
func (n *Navigator) NavigateAndVerify(targets []Target, check Check, timeout time.Duration) (string, error) {
	if _, err := n.Session.Driver(); err != nil {
		return "", err
	}
	var (
		last    Target
		lastErr error
	)
	for _, t := range targets {
		last = t
		if t.URL != "" {
			if err := n.Session.Navigate(t.URL); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					return "", err
				}
				glog.Warningf("navigate %s: %v", t, err)
				lastErr = err
				continue
			}
		}
		if t.Action != nil {
			if err := t.Action(n.Session); err != nil {
				glog.Warningf("action after %s: %v", t, err)
				lastErr = err
				continue
			}
		}
		ok, err := n.Await(check, timeout)
		if err != nil {
			return "", err
		}
		if ok {
			u, err := n.Session.CurrentURL()
			if err != nil {
				return "", err
			}
			glog.Infof("arrived at %s via %s", u, t)
			return u, nil
		}
		debugLog("no arrival after %s", t)
		lastErr = nil
	}
	if len(targets) == 0 {
		lastErr = errors.New("no navigation targets")
	}
	title, _ := n.Session.Title()
	u, _ := n.Session.CurrentURL()
	return "", &NavigationError{Target: last.String(), Title: title, URL: u, Err: lastErr}
}
