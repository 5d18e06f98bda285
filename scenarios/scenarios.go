// Package scenarios defines the end-to-end flows and runs them, one browser
// session per scenario.
package scenarios

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/pages"
)

// SearchQuery is what the product search looks for.
const SearchQuery = "Car"

// World is the state shared by the steps of one scenario.
type World struct {
	Session *uiflow.Session
	Config  *config.Config
	Pages   *pages.Pages
}

// Step is one action or check. A non-nil error fails the scenario.
type Step struct {
	Name string
	Run  func(*World) error
}

// Scenario is an ordered list of steps.
type Scenario struct {
	Name  string
	Steps []Step
}

func openSignUp(w *World) error {
	_, err := w.Pages.SignUp.Open()
	return err
}

var builtin = []Scenario{
	{
		Name: "signup-title",
		Steps: []Step{
			{"open the sign-up page", openSignUp},
			{"the title names the product", func(w *World) error { return w.Pages.SignUp.TitleLooksRight() }},
		},
	},
	{
		Name: "registration-form",
		Steps: []Step{
			{"open the sign-up page", openSignUp},
			{"fill in the form", func(w *World) error { return w.Pages.SignUp.Fill(pages.TestRegistration) }},
			{"the form keeps the values", func(w *World) error { return w.Pages.SignUp.AssertValues(pages.TestRegistration) }},
		},
	},
	{
		Name: "product-search",
		Steps: []Step{
			{"open the search engine", func(w *World) error { return w.Pages.Search.Open() }},
			{"search for " + SearchQuery, func(w *World) error { return w.Pages.Search.Search(SearchQuery) }},
			{"results are shown", func(w *World) error { return w.Pages.Search.VerifyResults(SearchQuery) }},
		},
	},
	{
		Name: "filter-params",
		Steps: []Step{
			{"open the filtered listing", func(w *World) error { return w.Pages.Find.Open(pages.DefaultFilters) }},
			{"the URL keeps the filters", func(w *World) error {
				return w.Pages.Find.VerifyParams(pages.DefaultFilters, pages.FindHost)
			}},
		},
	},
}

// Builtin returns the built-in scenarios in their run order.
func Builtin() []Scenario {
	return append([]Scenario(nil), builtin...)
}

// Select returns the built-in scenarios with the given names, in the order
// given. No names selects all of them.
func Select(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return Builtin(), nil
	}
	byName := make(map[string]Scenario, len(builtin))
	for _, sc := range builtin {
		byName[sc.Name] = sc
	}
	var out []Scenario
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (known: %s)", n, strings.Join(Names(), ", "))
		}
		out = append(out, sc)
	}
	return out, nil
}

// Names returns the sorted names of the built-in scenarios.
func Names() []string {
	names := make([]string, len(builtin))
	for i, sc := range builtin {
		names[i] = sc.Name
	}
	sort.Strings(names)
	return names
}
