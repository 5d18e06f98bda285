package uiflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/tebeka/selenium"
)

const (
	// DefaultTimeout is the per-candidate wait used when none is given.
	DefaultTimeout = 10 * time.Second
	// DefaultInterval is the polling interval of all waits.
	DefaultInterval = 250 * time.Millisecond
)

var errWaitTimeout = errors.New("timeout")

// poll evaluates cond every interval until it reports true, returns an error,
// or timeout elapses. cond is always evaluated at least once.
func poll(timeout, interval time.Duration, cond func() (bool, error)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := time.Now()
	for {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		elapsed := time.Since(start)
		if elapsed >= timeout {
			return fmt.Errorf("%w after %v", errWaitTimeout, elapsed.Round(time.Millisecond))
		}
		sleep := interval
		if rest := timeout - elapsed; rest < sleep {
			sleep = rest
		}
		time.Sleep(sleep)
	}
}

// Resolver finds elements through ordered candidate lists.
type Resolver struct {
	Session *Session
	// Timeout is the per-candidate wait used when a call passes zero.
	Timeout time.Duration
	// Interval is the polling interval.
	Interval time.Duration
}

// NewResolver returns a Resolver for s with the given default timeout.
func NewResolver(s *Session, timeout time.Duration) *Resolver {
	return &Resolver{Session: s, Timeout: timeout, Interval: DefaultInterval}
}

func (r *Resolver) timeout(t time.Duration) time.Duration {
	switch {
	case t > 0:
		return t
	case r.Timeout > 0:
		return r.Timeout
	}
	return DefaultTimeout
}

// Resolve returns the element matched by the first candidate that reaches
// mode within timeout. Candidates are tried strictly in order and later ones
// are never consulted once one succeeds. A zero timeout uses r.Timeout.
func (r *Resolver) Resolve(cands Candidates, mode Mode, timeout time.Duration) (selenium.WebElement, error) {
	wd, err := r.Session.Driver()
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, &NotFoundError{Candidates: cands, Mode: mode, Err: errors.New("no candidates")}
	}
	timeout = r.timeout(timeout)

	var lastErr error
	for _, loc := range cands {
		elem, err := waitElement(wd, loc, mode, timeout, r.Interval)
		if err == nil {
			debugLog("resolved %s as %s", loc, mode)
			return elem, nil
		}
		debugLog("candidate %s not %s: %v", loc, mode, err)
		lastErr = err
	}
	return nil, &NotFoundError{
		Candidates: cands,
		Mode:       mode,
		Last:       cands[len(cands)-1],
		Err:        lastErr,
	}
}

func waitElement(wd selenium.WebDriver, loc Locator, mode Mode, timeout, interval time.Duration) (selenium.WebElement, error) {
	var (
		found   selenium.WebElement
		lastErr error
	)
	err := poll(timeout, interval, func() (bool, error) {
		elem, err := wd.FindElement(loc.By, loc.Value)
		if err != nil {
			lastErr = err
			return false, nil
		}
		ok, err := satisfies(elem, mode)
		if err != nil {
			lastErr = err
			return false, nil
		}
		if !ok {
			lastErr = fmt.Errorf("element is not %s", mode)
			return false, nil
		}
		found = elem
		return true, nil
	})
	if err != nil {
		if lastErr != nil {
			return nil, fmt.Errorf("%v: %w", err, lastErr)
		}
		return nil, err
	}
	return found, nil
}

func satisfies(elem selenium.WebElement, mode Mode) (bool, error) {
	if mode == Present {
		return true, nil
	}
	shown, err := elem.IsDisplayed()
	if err != nil || !shown || mode == Visible {
		return shown, err
	}
	return elem.IsEnabled()
}

// Type resolves a visible element and types text into it, clearing it first
// when clear is set. A failing Clear is ignored since some mobile inputs
// reject it.
func (r *Resolver) Type(cands Candidates, text string, clear bool) error {
	elem, err := r.Resolve(cands, Visible, 0)
	if err != nil {
		return err
	}
	if clear {
		if err := elem.Clear(); err != nil {
			debugLog("clear %s: %v", cands, err)
		}
	}
	return elem.SendKeys(text)
}

// PressEnter resolves a visible element and sends the Enter key to it.
func (r *Resolver) PressEnter(cands Candidates) error {
	elem, err := r.Resolve(cands, Visible, 0)
	if err != nil {
		return err
	}
	return elem.SendKeys(selenium.EnterKey)
}

// Click resolves a clickable element, scrolls it into view and clicks it.
func (r *Resolver) Click(cands Candidates) error {
	elem, err := r.Resolve(cands, Clickable, 0)
	if err != nil {
		return err
	}
	if err := r.ScrollIntoView(elem); err != nil {
		debugLog("scroll %s into view: %v", cands, err)
	}
	return elem.Click()
}

// Value returns the value attribute of a visible element. A missing
// attribute reads as the empty string.
func (r *Resolver) Value(cands Candidates) (string, error) {
	elem, err := r.Resolve(cands, Visible, 0)
	if err != nil {
		return "", err
	}
	v, err := elem.GetAttribute("value")
	if err != nil {
		debugLog("value of %s: %v", cands, err)
		return "", nil
	}
	return v, nil
}

// Text returns the rendered text of a visible element.
func (r *Resolver) Text(cands Candidates) (string, error) {
	elem, err := r.Resolve(cands, Visible, 0)
	if err != nil {
		return "", err
	}
	return elem.Text()
}

// ScrollIntoView centers elem in the viewport.
func (r *Resolver) ScrollIntoView(elem selenium.WebElement) error {
	wd, err := r.Session.Driver()
	if err != nil {
		return err
	}
	_, err = wd.ExecuteScript("arguments[0].scrollIntoView({block:'center'});", []interface{}{elem})
	return err
}
