package uiflow

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wanmail/uiflow/internal/fakewd"
)

func newTestNavigator(s *Session) *Navigator {
	n := NewNavigator(s)
	n.Interval = testInterval
	return n
}

var landmarkCheck = Check{
	Gate:    NotErrorPage(),
	Signals: []Signal{ElementPresent(Candidates{ByID("landmark")})},
}

func TestNavigateSkipsErrorPage(t *testing.T) {
	const (
		urlA = "https://example.com/a"
		urlB = "https://example.com/b"
	)
	s, wd := newTestSession(t, map[string]*fakewd.Page{
		urlA: {Title: "Page not found", Body: "Oops", Elements: []*fakewd.Element{{ID: "landmark"}}},
		urlB: {Title: "Welcome", Elements: []*fakewd.Element{{ID: "landmark"}}},
	})

	got, err := newTestNavigator(s).NavigateAndVerify(URLs(urlA, urlB), landmarkCheck, testTimeout)
	if err != nil {
		t.Fatalf("NavigateAndVerify() returned error: %v", err)
	}
	if got != urlB {
		t.Errorf("NavigateAndVerify() = %q, want %q", got, urlB)
	}
	if diff := cmp.Diff([]string{urlA, urlB}, wd.Gets()); diff != "" {
		t.Errorf("visited URLs returned diff (-want/+got):\n%s", diff)
	}
	if st := s.State(); st != Navigated {
		t.Errorf("State() = %s, want %s", st, Navigated)
	}
}

func TestNavigateTimeout(t *testing.T) {
	const (
		urlA = "https://example.com/a"
		urlB = "https://example.com/b"
	)
	s, wd := newTestSession(t, map[string]*fakewd.Page{
		urlA: {Title: "Almost"},
		urlB: {Title: "Sign in | Example"},
	})

	start := time.Now()
	_, err := newTestNavigator(s).NavigateAndVerify(URLs(urlA, urlB), landmarkCheck, 5*testInterval)
	if err == nil {
		t.Fatalf("NavigateAndVerify() returned no error")
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("NavigateAndVerify() took %v", d)
	}
	if !errors.Is(err, ErrNavigationFailed) {
		t.Errorf("errors.Is(%v, ErrNavigationFailed) = false, want true", err)
	}
	var ne *NavigationError
	if !errors.As(err, &ne) {
		t.Fatalf("NavigateAndVerify() returned %T, want *NavigationError", err)
	}
	want := &NavigationError{Target: urlB, Title: "Sign in | Example", URL: urlB}
	if diff := cmp.Diff(want, ne); diff != "" {
		t.Errorf("NavigationError returned diff (-want/+got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{urlA, urlB}, wd.Gets()); diff != "" {
		t.Errorf("visited URLs returned diff (-want/+got):\n%s", diff)
	}
}

func TestNavigateGetErrorMovesOn(t *testing.T) {
	const (
		urlA = "https://example.com/a"
		urlB = "https://example.com/b"
	)
	s, wd := newTestSession(t, map[string]*fakewd.Page{
		urlB: {Title: "B", Elements: []*fakewd.Element{{ID: "landmark"}}},
	})
	wd.GetErr = map[string]error{urlA: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	got, err := newTestNavigator(s).NavigateAndVerify(URLs(urlA, urlB), landmarkCheck, testTimeout)
	if err != nil {
		t.Fatalf("NavigateAndVerify() returned error: %v", err)
	}
	if got != urlB {
		t.Errorf("NavigateAndVerify() = %q, want %q", got, urlB)
	}
}

func TestNavigateTargetAction(t *testing.T) {
	const (
		home   = "https://example.com/"
		signup = "https://example.com/auth/sign-up"
	)
	s, _ := newTestSession(t, map[string]*fakewd.Page{
		home: {Title: "Home", Elements: []*fakewd.Element{{
			Tag: "a", InnerText: "Sign up",
			OnClick: func(d *fakewd.Driver) { d.Load(signup) },
		}}},
		signup: {Title: "Sign up", Elements: []*fakewd.Element{{ID: "landmark"}}},
	})
	r := newTestResolver(s)

	targets := []Target{{
		URL:    home,
		Action: func(*Session) error { return r.Click(Candidates{ByPartialLinkText("Sign up")}) },
	}}
	check := Check{Gate: NotErrorPage(), Signals: []Signal{URLContains("sign-up")}}
	got, err := newTestNavigator(s).NavigateAndVerify(targets, check, testTimeout)
	if err != nil {
		t.Fatalf("NavigateAndVerify() returned error: %v", err)
	}
	if got != signup {
		t.Errorf("NavigateAndVerify() = %q, want %q", got, signup)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	const u = "https://example.com/find?pricePer=unit"
	s, _ := newTestSession(t, map[string]*fakewd.Page{
		"https://example.com/find": {Title: "Find", Elements: []*fakewd.Element{{ID: "landmark"}}},
	})
	if err := s.Navigate(u); err != nil {
		t.Fatalf("Navigate() returned error: %v", err)
	}
	n := newTestNavigator(s)

	for _, check := range []Check{
		landmarkCheck,
		{Signals: []Signal{URLContains("missing")}},
		{Gate: Not(URLContains("find"))},
	} {
		first, err := n.Evaluate(check)
		if err != nil {
			t.Fatalf("Evaluate() returned error: %v", err)
		}
		second, err := n.Evaluate(check)
		if err != nil {
			t.Fatalf("Evaluate() returned error: %v", err)
		}
		if first != second {
			t.Errorf("Evaluate() = %t then %t on unchanged state", first, second)
		}
	}
}

func TestEvaluateGateAndSignals(t *testing.T) {
	const u = "https://example.com/search?q=laptop"
	s, _ := newTestSession(t, map[string]*fakewd.Page{
		"https://example.com/search": {Title: "laptop - Search"},
	})
	if err := s.Navigate(u); err != nil {
		t.Fatalf("Navigate() returned error: %v", err)
	}
	n := newTestNavigator(s)

	for _, tc := range []struct {
		name  string
		check Check
		want  bool
	}{
		{"empty", Check{}, true},
		{"gate only", Check{Gate: URLContains("/search")}, true},
		{"failing gate", Check{Gate: URLContains("/other"), Signals: []Signal{TitleContainsAny("laptop")}}, false},
		{"one signal of two", Check{Signals: []Signal{URLContains("q=desk"), TitleContainsAny("LAPTOP")}}, true},
		{"no signal", Check{Signals: []Signal{URLContains("q=desk"), TitleContainsAny("desk")}}, false},
		{"all", Check{Gate: All(URLContains("search", "q="), NotErrorPage())}, true},
		{"any url", Check{Signals: []Signal{URLContainsAny("/results", "Q=LAPTOP")}}, true},
		{"no url", Check{Signals: []Signal{URLContainsAny("/results", "q=desk")}}, false},
	} {
		got, err := n.Evaluate(tc.check)
		if err != nil {
			t.Fatalf("%s: Evaluate() returned error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: Evaluate() = %t, want %t", tc.name, got, tc.want)
		}
	}
}

func TestSoftPassNeedsPolicy(t *testing.T) {
	const u = "https://example.com/auth/sign-in"
	s, _ := newTestSession(t, map[string]*fakewd.Page{u: {Title: "Sign in"}})
	if err := s.Navigate(u); err != nil {
		t.Fatalf("Navigate() returned error: %v", err)
	}
	check := Check{
		Signals:  []Signal{URLContains("sign-up")},
		SoftPass: URLContains("sign-in"),
	}

	n := newTestNavigator(s)
	if ok, _ := n.Evaluate(check); ok {
		t.Errorf("Evaluate() accepted a soft pass without AllowSoftPass")
	}
	n.AllowSoftPass = true
	if ok, _ := n.Evaluate(check); !ok {
		t.Errorf("Evaluate() rejected a soft pass with AllowSoftPass")
	}
}

func TestAwait(t *testing.T) {
	const u = "https://example.com/results"
	s, _ := newTestSession(t, map[string]*fakewd.Page{
		u: {Title: "Results", Elements: []*fakewd.Element{{ID: "landmark", AppearAfter: 15 * time.Millisecond}}},
	})
	if err := s.Navigate(u); err != nil {
		t.Fatalf("Navigate() returned error: %v", err)
	}
	n := newTestNavigator(s)

	ok, err := n.Await(landmarkCheck, 500*time.Millisecond)
	if err != nil || !ok {
		t.Errorf("Await(landmark) = %t, %v, want true, nil", ok, err)
	}
	ok, err = n.Await(Check{Signals: []Signal{URLContains("never")}}, 3*testInterval)
	if err != nil || ok {
		t.Errorf("Await(never) = %t, %v, want false, nil", ok, err)
	}
}

func TestNavigateClosedSession(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if err := s.Release(); err != nil {
		t.Fatalf("Release() returned error: %v", err)
	}
	_, err := newTestNavigator(s).NavigateAndVerify(URLs("https://example.com"), landmarkCheck, testTimeout)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("NavigateAndVerify() on a closed session returned %v, want ErrSessionClosed", err)
	}
}
