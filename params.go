package uiflow

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ExpectedParams maps query parameter names to their expected values.
// Parameters not listed are ignored.
type ExpectedParams map[string]string

// Verify checks rawURL's query against p. Every mismatch or missing
// parameter yields an *AssertionError naming the parameter and the full URL;
// they are joined in parameter name order.
func (p ExpectedParams) Verify(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &AssertionError{What: "URL", Expected: "a parseable URL", Actual: rawURL, Context: err.Error()}
	}
	q := u.Query()

	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)

	var errs []error
	for _, k := range names {
		want := p[k]
		vals, ok := q[k]
		if !ok {
			errs = append(errs, &AssertionError{
				What:     fmt.Sprintf("param %s missing", k),
				Expected: want,
				Context:  fmt.Sprintf("URL: %s", rawURL),
			})
			continue
		}
		if got := vals[0]; got != want {
			errs = append(errs, &AssertionError{
				What:     fmt.Sprintf("param %s", k),
				Expected: want,
				Actual:   got,
				Context:  fmt.Sprintf("URL: %s", rawURL),
			})
		}
	}
	return errors.Join(errs...)
}

// VerifyHost checks that rawURL's host is suffix or a subdomain of it.
func VerifyHost(rawURL, suffix string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &AssertionError{What: "URL", Expected: "a parseable URL", Actual: rawURL, Context: err.Error()}
	}
	host := strings.ToLower(u.Hostname())
	suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
	if host == suffix || strings.HasSuffix(host, "."+suffix) {
		return nil
	}
	return &AssertionError{What: "host", Expected: suffix, Actual: host, Context: fmt.Sprintf("URL: %s", rawURL)}
}

// VerifyParams checks the session's current URL against p.
func (s *Session) VerifyParams(p ExpectedParams) error {
	u, err := s.CurrentURL()
	if err != nil {
		return err
	}
	return p.Verify(u)
}
