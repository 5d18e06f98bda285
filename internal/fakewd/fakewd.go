// Package fakewd provides an in-memory selenium.WebDriver that serves a
// fixed set of pages. It implements only the calls this module makes;
// anything else panics through the embedded nil interface.
package fakewd

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/log"
)

// ErrNoSuchElement is returned by FindElement when nothing matches.
var ErrNoSuchElement = errors.New("no such element")

// ErrInvalidSession is returned by every call after Quit.
var ErrInvalidSession = errors.New("invalid session id")

// Page is one document the driver can load.
type Page struct {
	Title string
	// Body is the rendered text of the body element.
	Body     string
	Elements []*Element
	// Status is reported in the performance log. Zero means 200.
	Status int
	// Redirect, if set, makes loading this page land on Redirect instead.
	Redirect string
	// Source is returned by PageSource.
	Source string
}

// Window is the recorded window state.
type Window struct {
	Maximized     bool
	Width, Height int
}

// NotFound is served for URLs with no registered page.
var NotFound = &Page{
	Title:  "404 Not Found",
	Body:   "Sorry, the page you are looking for does not exist.",
	Status: 404,
}

// Driver is a fake WebDriver. Pages are looked up by full URL first and then
// by the URL without its query string.
type Driver struct {
	selenium.WebDriver

	// Session is returned by SessionID.
	Session string
	// QuitErr is returned by Quit.
	QuitErr error
	// GetErr, when set, fails Get for the URL keys it contains.
	GetErr map[string]error
	// ScreenshotErr is returned by Screenshot.
	ScreenshotErr error

	mu     sync.Mutex
	pages  map[string]*Page
	url    string
	page   *Page
	loaded time.Time
	quit   int
	gets   []string
	perf   []log.Message
	req    int
	script []string
	frame  *Page
	window Window
	plt    time.Duration
}

// New returns a driver serving pages keyed by URL. It starts on about:blank.
func New(pages map[string]*Page) *Driver {
	d := &Driver{
		Session: "fake-session",
		pages:   make(map[string]*Page),
		url:     "about:blank",
		page:    &Page{},
		loaded:  time.Now(),
	}
	for u, p := range pages {
		d.pages[u] = p
	}
	return d
}

// Route registers or replaces the page served for u.
func (d *Driver) Route(u string, p *Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[u] = p
}

// Gets returns every URL passed to Get, in order.
func (d *Driver) Gets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.gets...)
}

// QuitCount returns the number of Quit calls.
func (d *Driver) QuitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quit
}

// Scripts returns every script passed to ExecuteScript.
func (d *Driver) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.script...)
}

// Window returns the window state set through MaximizeWindow and
// ResizeWindow.
func (d *Driver) Window() Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window
}

// PageLoadTimeout returns the last value passed to SetPageLoadTimeout.
func (d *Driver) PageLoadTimeout() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plt
}

func (d *Driver) lookup(u string) *Page {
	if p, ok := d.pages[u]; ok {
		return p
	}
	if pu, err := url.Parse(u); err == nil {
		pu.RawQuery = ""
		pu.Fragment = ""
		if p, ok := d.pages[pu.String()]; ok {
			return p
		}
	}
	return NotFound
}

func (d *Driver) alive() error {
	if d.quit > 0 {
		return ErrInvalidSession
	}
	return nil
}

// Get loads u, following page redirects.
func (d *Driver) Get(u string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.gets = append(d.gets, u)
	if err, ok := d.GetErr[u]; ok {
		return err
	}
	d.load(u)
	return nil
}

// Load navigates without recording a Get, the way a click would.
func (d *Driver) Load(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.load(u)
}

func (d *Driver) load(u string) {
	p := d.lookup(u)
	for i := 0; i < 10 && p.Redirect != ""; i++ {
		u = p.Redirect
		p = d.lookup(u)
	}
	d.url, d.page, d.loaded, d.frame = u, p, time.Now(), nil
	for _, e := range p.Elements {
		e.reset(d)
		if e.Frame != nil {
			for _, fe := range e.Frame.Elements {
				fe.reset(d)
			}
		}
	}
	d.logDocument(u, p)
}

func (d *Driver) logDocument(u string, p *Page) {
	d.req++
	status := p.Status
	if status == 0 {
		status = 200
	}
	now := time.Now()
	id := fmt.Sprintf("loader-%d", d.req)
	d.perf = append(d.perf,
		log.Message{Timestamp: now, Level: log.Info, Message: fmt.Sprintf(
			`{"message":{"method":"Page.frameNavigated","params":{"frame":{"id":"main","loaderId":%q,"url":%q,"securityOrigin":"","mimeType":"text/html"}}},"webview":"main"}`,
			id, u)},
		log.Message{Timestamp: now, Level: log.Info, Message: fmt.Sprintf(
			`{"message":{"method":"Network.responseReceived","params":{"requestId":%q,"loaderId":%q,"timestamp":1,"type":"Document","frameId":"main","response":{"url":%q,"status":%d,"statusText":"","headers":{},"mimeType":"text/html","connectionReused":false,"connectionId":0,"encodedDataLength":0,"securityState":"secure"}}},"webview":"main"}`,
			id, id, u, status)},
	)
}

// CurrentURL returns the loaded URL.
func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return "", err
	}
	return d.url, nil
}

// Title returns the loaded page's title.
func (d *Driver) Title() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return "", err
	}
	return d.page.Title, nil
}

// PageSource returns the loaded page's source.
func (d *Driver) PageSource() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return "", err
	}
	if d.page.Source != "" {
		return d.page.Source, nil
	}
	return fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>", d.page.Title, d.page.Body), nil
}

// SessionID returns d.Session.
func (d *Driver) SessionID() string { return d.Session }

// Quit ends the session. Every later call fails.
func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quit++
	return d.QuitErr
}

// FindElement returns the first present element matching by and value.
func (d *Driver) FindElement(by, value string) (selenium.WebElement, error) {
	elems, err := d.FindElements(by, value)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrNoSuchElement, by, value)
	}
	return elems[0], nil
}

// FindElements returns every present element matching by and value.
func (d *Driver) FindElements(by, value string) ([]selenium.WebElement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return nil, err
	}
	if by == selenium.ByTagName && value == "body" {
		return []selenium.WebElement{&Element{Tag: "body", InnerText: d.page.Body, driver: d}}, nil
	}
	since := time.Since(d.loaded)
	page := d.page
	if d.frame != nil {
		page = d.frame
	}
	var out []selenium.WebElement
	for _, e := range page.Elements {
		if e.AppearAfter > since {
			continue
		}
		if e.matches(by, value) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ExecuteScript records the script and returns nil.
func (d *Driver) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return nil, err
	}
	d.script = append(d.script, script)
	return nil, nil
}

// SwitchFrame enters the frame of an iframe Element. A nil frame returns to
// the top document.
func (d *Driver) SwitchFrame(frame interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	if frame == nil {
		d.frame = nil
		return nil
	}
	e, ok := frame.(*Element)
	if !ok || e.Frame == nil {
		return fmt.Errorf("no such frame: %v", frame)
	}
	d.frame = e.Frame
	return nil
}

// MaximizeWindow records a maximized window.
func (d *Driver) MaximizeWindow(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.window.Maximized = true
	return nil
}

// ResizeWindow records the window size.
func (d *Driver) ResizeWindow(name string, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.window.Width, d.window.Height = width, height
	return nil
}

// SetPageLoadTimeout records timeout.
func (d *Driver) SetPageLoadTimeout(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.plt = timeout
	return nil
}

// Screenshot returns a small PNG, or ScreenshotErr.
func (d *Driver) Screenshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return nil, err
	}
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Log drains the performance log. Other log types are empty.
func (d *Driver) Log(typ log.Type) ([]log.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return nil, err
	}
	if typ != log.Performance {
		return nil, nil
	}
	msgs := d.perf
	d.perf = nil
	return msgs, nil
}

// Element is a fake DOM element.
type Element struct {
	selenium.WebElement

	ID, Name, Tag string
	// CSS and XPath list the selectors and expressions that match.
	CSS, XPath []string
	InnerText  string
	Attrs      map[string]string
	Hidden     bool
	Disabled   bool
	// AppearAfter delays presence relative to page load.
	AppearAfter time.Duration
	// OnClick runs on Click. OnEnter runs when Enter is typed.
	OnClick func(*Driver)
	OnEnter func(*Driver)
	// RejectClear makes Clear fail, as some mobile inputs do.
	RejectClear bool
	// Frame is the document of an iframe element.
	Frame *Page

	driver *Driver
	mu     sync.Mutex
	value  string
	clicks int
}

func (e *Element) reset(d *Driver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.driver = d
	e.value = e.Attrs["value"]
}

func (e *Element) matches(by, value string) bool {
	switch by {
	case selenium.ByID:
		return e.ID != "" && e.ID == value
	case selenium.ByName:
		return e.Name != "" && e.Name == value
	case selenium.ByTagName:
		return strings.EqualFold(e.Tag, value)
	case selenium.ByCSSSelector:
		if e.ID != "" && value == "#"+e.ID {
			return true
		}
		return contains(e.CSS, value)
	case selenium.ByXPATH:
		return contains(e.XPath, value)
	case selenium.ByLinkText:
		return e.Tag == "a" && strings.TrimSpace(e.InnerText) == value
	case selenium.ByPartialLinkText:
		return e.Tag == "a" && strings.Contains(e.InnerText, value)
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Value returns what has been typed into the element.
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Clicks returns the number of successful clicks.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) interactable() error {
	if e.Hidden {
		return errors.New("element not interactable")
	}
	return nil
}

// Click runs OnClick.
func (e *Element) Click() error {
	e.mu.Lock()
	if err := e.interactable(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.Disabled {
		e.mu.Unlock()
		return errors.New("element click intercepted")
	}
	e.clicks++
	f, d := e.OnClick, e.driver
	e.mu.Unlock()
	if f != nil {
		f(d)
	}
	return nil
}

// SendKeys appends keys to the value. The Enter key runs OnEnter.
func (e *Element) SendKeys(keys string) error {
	e.mu.Lock()
	if err := e.interactable(); err != nil {
		e.mu.Unlock()
		return err
	}
	enter := strings.Contains(keys, selenium.EnterKey) || strings.Contains(keys, selenium.ReturnKey)
	keys = strings.NewReplacer(selenium.EnterKey, "", selenium.ReturnKey, "").Replace(keys)
	e.value += keys
	f, d := e.OnEnter, e.driver
	e.mu.Unlock()
	if enter && f != nil {
		f(d)
	}
	return nil
}

// Clear empties the value.
func (e *Element) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.RejectClear {
		return errors.New("invalid element state")
	}
	e.value = ""
	return nil
}

// Text returns e.InnerText.
func (e *Element) Text() (string, error) { return e.InnerText, nil }

// TagName returns e.Tag.
func (e *Element) TagName() (string, error) { return e.Tag, nil }

// GetAttribute returns the typed value for "value" and Attrs otherwise.
func (e *Element) GetAttribute(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "value" {
		return e.value, nil
	}
	v, ok := e.Attrs[name]
	if !ok {
		return "", fmt.Errorf("nil return value")
	}
	return v, nil
}

// IsDisplayed reports !e.Hidden.
func (e *Element) IsDisplayed() (bool, error) { return !e.Hidden, nil }

// IsEnabled reports !e.Disabled.
func (e *Element) IsEnabled() (bool, error) { return !e.Disabled, nil }
