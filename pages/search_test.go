package pages

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/internal/fakewd"
)

const (
	engineHome    = "https://www.google.com/"
	engineResults = "https://www.google.com/search"
)

func resultsPage() *fakewd.Page {
	return &fakewd.Page{
		Title:    "Car - Google Search",
		Elements: []*fakewd.Element{{ID: "search", Tag: "div"}},
	}
}

func TestSearchURLs(t *testing.T) {
	p := newPages(fakewd.New(nil), nil)
	if got, want := p.Search.HomeURL(), "https://www.google.com/?hl=en&gl=us"; got != want {
		t.Errorf("HomeURL() = %q, want %q", got, want)
	}
	if got, want := p.Search.ResultsURL("used cars"), "https://www.google.com/search?q=used+cars&hl=en&gl=us"; got != want {
		t.Errorf("ResultsURL() = %q, want %q", got, want)
	}
}

func TestSearchDismissesConsent(t *testing.T) {
	accept := &fakewd.Element{ID: "L2AGLb", Tag: "button"}
	consent := &fakewd.Element{
		Tag:   "iframe",
		CSS:   []string{`iframe[src*="consent"]`},
		Frame: &fakewd.Page{Elements: []*fakewd.Element{accept}},
	}
	input := &fakewd.Element{
		Name:    "q",
		Tag:     "input",
		OnEnter: func(d *fakewd.Driver) { d.Load("https://www.google.com/search?q=Car&hl=en") },
	}
	wd := fakewd.New(map[string]*fakewd.Page{
		engineHome:    {Title: "Google", Elements: []*fakewd.Element{consent, input}},
		engineResults: resultsPage(),
	})
	p := newPages(wd, nil)

	if err := p.Search.Open(); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if accept.Clicks() != 1 {
		t.Errorf("consent accepted %d times, want 1", accept.Clicks())
	}
	// The search box lives in the top document.
	if err := p.Search.Search("Car"); err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}
	if err := p.Search.VerifyResults("Car"); err != nil {
		t.Fatalf("VerifyResults() returned error: %v", err)
	}
	if diff := cmp.Diff([]string{p.Search.HomeURL()}, wd.Gets()); diff != "" {
		t.Errorf("Gets() returned diff (-want/+got):\n%s", diff)
	}
}

func TestSearchWithoutConsent(t *testing.T) {
	wd := fakewd.New(map[string]*fakewd.Page{engineHome: {Title: "Google"}})
	p := newPages(wd, nil)
	if err := p.Search.Open(); err != nil {
		t.Errorf("Open() returned error: %v", err)
	}
}

func TestVerifyResultsLoadsResultsURL(t *testing.T) {
	input := &fakewd.Element{Name: "q", Tag: "input"}
	wd := fakewd.New(map[string]*fakewd.Page{
		engineHome:    {Title: "Google", Elements: []*fakewd.Element{input}},
		engineResults: resultsPage(),
	})
	p := newPages(wd, nil)
	if err := p.Search.Open(); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if err := p.Search.Search("Car"); err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}

	if err := p.Search.VerifyResults("Car"); err != nil {
		t.Fatalf("VerifyResults() returned error: %v", err)
	}
	want := []string{p.Search.HomeURL(), p.Search.ResultsURL("Car")}
	if diff := cmp.Diff(want, wd.Gets()); diff != "" {
		t.Errorf("Gets() returned diff (-want/+got):\n%s", diff)
	}
}

func TestVerifyResultsFails(t *testing.T) {
	wd := fakewd.New(map[string]*fakewd.Page{engineHome: {Title: "Google"}})
	p := newPages(wd, nil)
	wd.GetErr = map[string]error{p.Search.ResultsURL("Car"): errors.New("net::ERR_CONNECTION_RESET")}
	if err := p.Search.Open(); err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if err := p.Search.VerifyResults("Car"); !errors.Is(err, uiflow.ErrNavigationFailed) {
		t.Errorf("VerifyResults() returned error %v, want ErrNavigationFailed", err)
	}
}
