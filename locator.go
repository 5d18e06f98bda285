package uiflow

import (
	"fmt"
	"strings"

	"github.com/tebeka/selenium"
)

// Locator identifies how to find one element on a page. By is one of the
// selenium.By* strategies.
type Locator struct {
	By    string
	Value string
}

// ByID locates an element by its id attribute.
func ByID(id string) Locator { return Locator{selenium.ByID, id} }

// ByName locates a form element by its name attribute.
func ByName(name string) Locator { return Locator{selenium.ByName, name} }

// ByCSS locates an element by CSS selector.
func ByCSS(selector string) Locator { return Locator{selenium.ByCSSSelector, selector} }

// ByXPath locates an element by XPath expression.
func ByXPath(expr string) Locator { return Locator{selenium.ByXPATH, expr} }

// ByLinkText locates an anchor by its exact text.
func ByLinkText(text string) Locator { return Locator{selenium.ByLinkText, text} }

// ByPartialLinkText locates an anchor whose text contains text.
func ByPartialLinkText(text string) Locator { return Locator{selenium.ByPartialLinkText, text} }

// ByTag locates an element by tag name.
func ByTag(name string) Locator { return Locator{selenium.ByTagName, name} }

func (l Locator) String() string {
	return fmt.Sprintf("(%s %q)", l.By, l.Value)
}

// Candidates is an ordered list of locators for one logical element. Earlier
// entries take priority.
type Candidates []Locator

func (c Candidates) String() string {
	parts := make([]string, len(c))
	for i, l := range c {
		parts[i] = l.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Mode is the state an element must reach to be resolved.
type Mode int

// Resolution modes, from weakest to strongest.
const (
	// Present requires the element to exist in the DOM.
	Present Mode = iota
	// Visible additionally requires the element to be displayed.
	Visible
	// Clickable additionally requires the element to be enabled.
	Clickable
)

func (m Mode) String() string {
	switch m {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
