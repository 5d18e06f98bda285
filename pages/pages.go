// Package pages holds the page objects of the flows under test. Page objects
// only orchestrate: locating elements and verifying arrival are done by the
// uiflow Resolver and Navigator.
package pages

import (
	"time"

	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/config"
)

// Base is what every page object shares.
type Base struct {
	Session *uiflow.Session
	Find    *uiflow.Resolver
	Nav     *uiflow.Navigator
	// Timeout is the arrival budget.
	Timeout time.Duration
	// Short bounds optional waits.
	Short time.Duration
}

// NewBase wires a Resolver and a Navigator for s from c.
func NewBase(s *uiflow.Session, c *config.Config) Base {
	find := uiflow.NewResolver(s, c.Timeouts.Element)
	nav := uiflow.NewNavigator(s)
	if c.Timeouts.Interval > 0 {
		find.Interval = c.Timeouts.Interval
		nav.Interval = c.Timeouts.Interval
	}
	nav.AllowSoftPass = c.Policy.AcceptSignInRedirect
	return Base{
		Session: s,
		Find:    find,
		Nav:     nav,
		Timeout: c.EffectiveTimeout(),
		Short:   c.ShortTimeout(),
	}
}

func (b Base) short() time.Duration {
	if b.Short > 0 && b.Short < b.Timeout {
		return b.Short
	}
	return b.Timeout
}

// Pages are the page objects of one session.
type Pages struct {
	SignUp *SignUpPage
	Search *SearchPage
	Find   *FindPage
}

// New returns the page objects for s.
func New(s *uiflow.Session, c *config.Config) *Pages {
	b := NewBase(s, c)
	return &Pages{
		SignUp: &SignUpPage{Base: b, BaseURL: c.BaseURL},
		Search: NewSearchPage(b, c.SearchURL),
		Find:   &FindPage{Base: b, URL: c.FindURL},
	}
}
