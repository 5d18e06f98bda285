package uiflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"
)

// State is the lifecycle state of a Session.
type State int

// Session states. A Session moves forward only:
// Uninitialized -> Ready -> Navigated -> Closed.
const (
	Uninitialized State = iota
	Ready
	Navigated
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Navigated:
		return "navigated"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var errNotReady = errors.New("session not initialized")

// SessionOption configures a Session created by NewSession.
type SessionOption func(*Session)

// OnRelease registers a function to run when the session is released. They
// run after the browser quits, in reverse registration order.
func OnRelease(f func() error) SessionOption {
	return func(s *Session) {
		s.closers = append(s.closers, f)
	}
}

// Display records the X display a local browser renders into.
func Display(d string) SessionOption {
	return func(s *Session) {
		s.display = d
	}
}

// Remote marks the session as running on the named remote grid.
func Remote(provider string) SessionOption {
	return func(s *Session) {
		s.provider = provider
	}
}

// Session is one live browser under automated control. A Session is owned by
// exactly one goroutine at a time; it performs no locking of its own beyond
// guarding its lifecycle state.
type Session struct {
	wd selenium.WebDriver

	mu      sync.Mutex
	state   State
	closers []func() error

	display  string
	provider string

	releaseOnce sync.Once
	releaseErr  error

	doc documentStatus
}

// NewSession wraps a WebDriver that already holds an open browser session.
func NewSession(wd selenium.WebDriver, opts ...SessionOption) *Session {
	s := &Session{wd: wd}
	if wd != nil {
		s.state = Ready
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the WebDriver session ID, or the empty string once closed.
func (s *Session) ID() string {
	wd, err := s.Driver()
	if err != nil {
		return ""
	}
	return wd.SessionID()
}

// Display returns the X display of the local frame buffer, if any.
func (s *Session) Display() string { return s.display }

// Provider returns the remote grid name, or the empty string for a local
// browser.
func (s *Session) Provider() string { return s.provider }

// IsRemote reports whether the browser runs on a remote grid.
func (s *Session) IsRemote() bool { return s.provider != "" }

// Driver returns the underlying WebDriver while the session accepts
// operations.
func (s *Session) Driver() (selenium.WebDriver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Ready, Navigated:
		return s.wd, nil
	case Closed:
		return nil, ErrSessionClosed
	}
	return nil, errNotReady
}

// Navigate directs the browser to url.
func (s *Session) Navigate(url string) error {
	wd, err := s.Driver()
	if err != nil {
		return err
	}
	glog.V(1).Infof("navigating to %s", url)
	if err := wd.Get(url); err != nil {
		return fmt.Errorf("get %q: %w", url, err)
	}
	s.mu.Lock()
	if s.state == Ready {
		s.state = Navigated
	}
	s.mu.Unlock()
	return nil
}

// CurrentURL returns the browser's current URL.
func (s *Session) CurrentURL() (string, error) {
	wd, err := s.Driver()
	if err != nil {
		return "", err
	}
	return wd.CurrentURL()
}

// Title returns the current page title.
func (s *Session) Title() (string, error) {
	wd, err := s.Driver()
	if err != nil {
		return "", err
	}
	return wd.Title()
}

// Screenshot returns a PNG of the browser viewport.
func (s *Session) Screenshot() ([]byte, error) {
	wd, err := s.Driver()
	if err != nil {
		return nil, err
	}
	return wd.Screenshot()
}

// Release quits the browser and runs the registered release functions. Only
// the first call does any work; later calls return nil.
func (s *Session) Release() error {
	first := false
	s.releaseOnce.Do(func() {
		first = true
		s.mu.Lock()
		wd, state := s.wd, s.state
		s.state = Closed
		closers := s.closers
		s.closers = nil
		s.mu.Unlock()

		var errs []error
		if wd != nil && state != Uninitialized {
			if err := wd.Quit(); err != nil {
				glog.Warningf("quitting session %s: %v", wd.SessionID(), err)
				errs = append(errs, fmt.Errorf("quit: %w", err))
			}
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		s.releaseErr = errors.Join(errs...)
	})
	if !first {
		return nil
	}
	return s.releaseErr
}
