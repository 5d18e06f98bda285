package uiflow

import (
	"strings"

	"github.com/tebeka/selenium"
)

// Signal is a read-only check against the browser's current state. It has
// the same shape as selenium.Condition so either can be used.
type Signal = selenium.Condition

// DefaultErrorMarkers are the title and body fragments that make a page look
// like an error page.
var DefaultErrorMarkers = []string{"404", "not found", "doesn’t exist", "does not exist", "page not found"}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// URLContains is true when the current URL contains every substring,
// ignoring case.
func URLContains(subs ...string) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		u, err := wd.CurrentURL()
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			if !containsFold(u, sub) {
				return false, nil
			}
		}
		return true, nil
	}
}

// URLContainsAny is true when the current URL contains at least one of the
// substrings, ignoring case.
func URLContainsAny(subs ...string) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		u, err := wd.CurrentURL()
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			if containsFold(u, sub) {
				return true, nil
			}
		}
		return false, nil
	}
}

// TitleContainsAny is true when the page title contains at least one of the
// fragments, ignoring case.
func TitleContainsAny(fragments ...string) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		title, err := wd.Title()
		if err != nil {
			return false, err
		}
		for _, f := range fragments {
			if containsFold(title, f) {
				return true, nil
			}
		}
		return false, nil
	}
}

// ElementPresent is true when any of the candidates currently matches an
// element. It does not wait.
func ElementPresent(cands Candidates) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		for _, loc := range cands {
			if _, err := wd.FindElement(loc.By, loc.Value); err == nil {
				return true, nil
			}
		}
		return false, nil
	}
}

// NotErrorPage is true when neither the title nor the body text contains any
// of the markers. With no markers, DefaultErrorMarkers are used. It is meant
// as a Check gate: a page can look healthy and still be the wrong page.
func NotErrorPage(markers ...string) Signal {
	if len(markers) == 0 {
		markers = DefaultErrorMarkers
	}
	return func(wd selenium.WebDriver) (bool, error) {
		title, err := wd.Title()
		if err != nil {
			return false, err
		}
		var body string
		if elem, err := wd.FindElement(selenium.ByTagName, "body"); err == nil {
			body, _ = elem.Text()
		}
		for _, m := range markers {
			if containsFold(title, m) || containsFold(body, m) {
				return false, nil
			}
		}
		return true, nil
	}
}

// All is true when every signal is true. An empty All is true.
func All(signals ...Signal) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		for _, s := range signals {
			ok, err := s(wd)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any is true when at least one signal is true. Errors from individual
// signals count as false; the last one is returned only if none is true.
func Any(signals ...Signal) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		var lastErr error
		for _, s := range signals {
			ok, err := s(wd)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, lastErr
	}
}

// Not inverts a signal. An error stays an error.
func Not(s Signal) Signal {
	return func(wd selenium.WebDriver) (bool, error) {
		ok, err := s(wd)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}
