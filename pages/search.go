package pages

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/wanmail/uiflow"
)

// Search engine locators.
var (
	SearchInput = uiflow.Candidates{
		uiflow.ByName("q"),
		uiflow.ByCSS(`input[title="Search"]`),
		uiflow.ByCSS(`form[action*="/search"] input[type="text"]`),
	}
	SearchSubmit = uiflow.Candidates{
		uiflow.ByName("btnK"),
		uiflow.ByCSS(`input[name="btnK"]`),
		uiflow.ByCSS(`form[action*="/search"] button[type="submit"]`),
	}
	// SearchResults are landmarks of a results page.
	SearchResults = uiflow.Candidates{
		uiflow.ByID("search"),
		uiflow.ByCSS("#center_col"),
		uiflow.ByCSS(`div[role="main"]`),
		uiflow.ByCSS("a h3"),
		uiflow.ByCSS("div[data-hveid]"),
	}
	ConsentFrame = uiflow.Candidates{
		uiflow.ByCSS(`iframe[src*="consent"]`),
	}
	ConsentAccept = uiflow.Candidates{
		uiflow.ByID("L2AGLb"),
		uiflow.ByCSS(`button[aria-label*="Accept"]`),
		uiflow.ByXPath(`//button[contains(.,"I agree") or contains(.,"Accept all")]`),
	}
)

// maxResultsWait caps the wait for results before the direct URL is tried.
const maxResultsWait = 20 * time.Second

// SearchPage is a search engine home and results page.
type SearchPage struct {
	Base
	// Root is the engine's origin, e.g. https://www.google.com.
	Root string

	// wait resolves the search box within the arrival budget.
	wait *uiflow.Resolver
}

// NewSearchPage returns a SearchPage for the engine at root.
func NewSearchPage(b Base, root string) *SearchPage {
	wait := uiflow.NewResolver(b.Session, b.Timeout)
	wait.Interval = b.Find.Interval
	return &SearchPage{Base: b, Root: strings.TrimRight(root, "/"), wait: wait}
}

// HomeURL is the localized home page.
func (p *SearchPage) HomeURL() string {
	return p.Root + "/?hl=en&gl=us"
}

// ResultsURL is the results page for query, loaded directly.
func (p *SearchPage) ResultsURL(query string) string {
	return p.Root + "/search?q=" + url.QueryEscape(query) + "&hl=en&gl=us"
}

// Open loads the home page and accepts a consent dialog if one is shown.
func (p *SearchPage) Open() error {
	if err := p.Session.Navigate(p.HomeURL()); err != nil {
		return err
	}
	if err := p.DismissConsent(); err != nil {
		glog.V(1).Infof("consent: %v", err)
	}
	return nil
}

// DismissConsent clicks the first accept button, looking inside a consent
// iframe when the page has one. It always returns to the top document.
func (p *SearchPage) DismissConsent() error {
	wd, err := p.Session.Driver()
	if err != nil {
		return err
	}
	frames, err := wd.FindElements(ConsentFrame[0].By, ConsentFrame[0].Value)
	if err == nil && len(frames) > 0 {
		if err := wd.SwitchFrame(frames[0]); err != nil {
			return err
		}
		defer func() {
			if err := wd.SwitchFrame(nil); err != nil {
				glog.Warningf("leaving the consent frame: %v", err)
			}
		}()
	}
	elem, err := p.Find.Resolve(ConsentAccept, uiflow.Clickable, p.short())
	if err != nil {
		return err
	}
	glog.Info("accepting the consent dialog")
	return elem.Click()
}

// Search types query and submits it, with Enter first and the submit
// button as a fallback.
func (p *SearchPage) Search(query string) error {
	if err := p.wait.Type(SearchInput, query, true); err != nil {
		return err
	}
	if err := p.Find.PressEnter(SearchInput); err == nil {
		return nil
	}
	if err := p.Find.Click(SearchSubmit); err == nil {
		return nil
	}
	return p.Find.PressEnter(SearchInput)
}

func (p *SearchPage) resultsCheck(query string) uiflow.Check {
	q := strings.ToLower(url.QueryEscape(query))
	return uiflow.Check{
		Signals: []uiflow.Signal{
			uiflow.URLContains("/search", "q="+q),
			uiflow.ElementPresent(SearchResults),
			uiflow.TitleContainsAny(query),
		},
	}
}

// VerifyResults checks that results for query are shown. If they are not,
// it loads the results URL directly and checks again.
func (p *SearchPage) VerifyResults(query string) error {
	wait := p.Timeout
	if wait > maxResultsWait {
		wait = maxResultsWait
	}
	targets := []uiflow.Target{{}, {URL: p.ResultsURL(query)}}
	if _, err := p.Nav.NavigateAndVerify(targets, p.resultsCheck(query), wait); err != nil {
		return fmt.Errorf("search results did not load: %w", err)
	}
	return nil
}
