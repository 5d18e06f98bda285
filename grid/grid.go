// Package grid builds sessions on hosted browser grids.
package grid

import (
	"fmt"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/wanmail/uiflow/config"
)

// Request describes the browser a scenario wants from a grid.
type Request struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	// Device names a real mobile device, e.g. "iPhone 14".
	Device string
	Width  int
	Height int

	// Name, Build and Project label the session in the grid's dashboard.
	Name    string
	Build   string
	Project string

	// NetworkLogs asks the grid to record the session's network traffic.
	NetworkLogs bool
}

// RequestFrom derives a Request from c for the named scenario.
func RequestFrom(c *config.Config, name string) Request {
	return Request{
		Browser:        string(c.Browser),
		BrowserVersion: c.BrowserVersion,
		OS:             c.OS,
		OSVersion:      c.OSVersion,
		Device:         c.Device,
		Width:          c.Window.Width,
		Height:         c.Window.Height,
		Name:           name,
		Build:          c.Grid.Build,
		Project:        c.Grid.Project,
		NetworkLogs:    c.Capture.Network,
	}
}

// Provider is a hosted browser grid.
type Provider interface {
	// Name is the provider's configuration name.
	Name() string
	// Addr is the WebDriver endpoint, credentials included.
	Addr() (string, error)
	// Capabilities returns the W3C capabilities for r.
	Capabilities(r Request) (selenium.Capabilities, error)
	// Label sets the session name shown in the dashboard.
	Label(wd selenium.WebDriver, name string) error
	// MarkStatus records the scenario outcome in the dashboard.
	MarkStatus(wd selenium.WebDriver, passed bool, reason string) error
}

// Tunneler is implemented by providers that can reach local hosts through
// a tunnel process.
type Tunneler interface {
	// StartTunnel starts the tunnel and returns the WebDriver endpoint that
	// goes through it.
	StartTunnel() (addr string, stop func() error, err error)
}

// New returns the Provider configured in c. A remote provider without
// credentials is an error wrapping config.ErrMissingCredentials.
func New(c *config.Config) (Provider, error) {
	if c.Provider.Remote() && (c.Grid.User == "" || c.Grid.Key == "") {
		return nil, fmt.Errorf("%s: %w", c.Provider, config.ErrMissingCredentials)
	}
	switch c.Provider {
	case config.BrowserStack:
		return &BrowserStack{User: c.Grid.User, Key: c.Grid.Key, URL: c.Grid.URL, Local: c.Grid.Tunnel}, nil
	case config.Sauce:
		return &Sauce{User: c.Grid.User, Key: c.Grid.Key, URL: c.Grid.URL, ConnectPath: c.Grid.TunnelPath, Tunnel: c.Grid.Tunnel}, nil
	}
	return nil, fmt.Errorf("provider %q is not a grid", c.Provider)
}

// w3cBrowserName maps configuration browser names to W3C browserName values.
func w3cBrowserName(b string) string {
	switch strings.ToLower(b) {
	case "edge":
		return "MicrosoftEdge"
	case "":
		return "chrome"
	}
	return strings.ToLower(b)
}

func resolution(r Request) string {
	if r.Width <= 0 || r.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
