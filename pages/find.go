package pages

import (
	"net/url"
	"strings"

	"github.com/wanmail/uiflow"
)

// FindHost is the domain the property search must stay on.
const FindHost = "reelly.io"

// DefaultFilters are the filters of the default listing view.
var DefaultFilters = uiflow.ExpectedParams{
	"pricePer":       "unit",
	"withDealBonus":  "false",
	"handoverOnly":   "false",
	"handoverMonths": "1",
}

// FindPage is the property search with its URL-encoded filters.
type FindPage struct {
	Base
	// URL is the search origin, e.g. https://find.reelly.io.
	URL string
}

// FilterURL returns the search URL with filters applied.
func (p *FindPage) FilterURL(filters uiflow.ExpectedParams) string {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	return strings.TrimRight(p.URL, "/") + "/?" + q.Encode()
}

// Open loads the search with filters applied.
func (p *FindPage) Open(filters uiflow.ExpectedParams) error {
	return p.Session.Navigate(p.FilterURL(filters))
}

// VerifyParams checks that the page stayed on hostSuffix and still carries
// params in its URL.
func (p *FindPage) VerifyParams(params uiflow.ExpectedParams, hostSuffix string) error {
	u, err := p.Session.CurrentURL()
	if err != nil {
		return err
	}
	if err := uiflow.VerifyHost(u, hostSuffix); err != nil {
		return err
	}
	return params.Verify(u)
}
