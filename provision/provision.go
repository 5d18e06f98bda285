// Package provision turns a configuration into a live browser session,
// either on a local driver or on a hosted grid.
package provision

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"
	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/grid"
	"github.com/wanmail/uiflow/hostproxy"
	"github.com/wanmail/uiflow/internal/driver"
)

// Provisioner creates sessions. The zero value is ready to use.
type Provisioner struct {
	// Installer downloads local drivers. Nil uses one rooted at the
	// configured driver directory.
	Installer *driver.Installer
	// Grid overrides the grid derived from the configuration.
	Grid grid.Provider
	// NewRemote opens the WebDriver session. Nil means selenium.NewRemote.
	NewRemote func(caps selenium.Capabilities, addr string) (selenium.WebDriver, error)

	startDriver func(ctx context.Context, c *config.Config) (*localDriver, error)
}

func fail(stage string, err error) error {
	return &uiflow.ProvisioningError{Stage: stage, Err: err}
}

// Provider returns the grid that serves c.
func (p *Provisioner) Provider(c *config.Config) (grid.Provider, error) {
	if p.Grid != nil {
		return p.Grid, nil
	}
	return grid.New(c)
}

// Provision creates a session for c.
func (p *Provisioner) Provision(ctx context.Context, c *config.Config) (*uiflow.Session, error) {
	return p.ProvisionNamed(ctx, c, "uiflow")
}

// ProvisionNamed creates a session for c. Grids show it as name.
//
// Every failure is a *uiflow.ProvisioningError, and everything started
// before the failure is stopped again.
func (p *Provisioner) ProvisionNamed(ctx context.Context, c *config.Config, name string) (_ *uiflow.Session, err error) {
	if err := c.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			return nil, fail("credentials", err)
		}
		return nil, fail("config", err)
	}

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				glog.Warningf("cleaning up after failed provisioning: %v", cerr)
			}
		}
	}()

	var proxy *selenium.Proxy
	if len(c.Proxy.HostOverrides) > 0 {
		if c.IsRemote() {
			glog.Warningf("host overrides apply to local browsers only; ignoring them on %s", c.Provider)
		} else {
			srv, err := hostproxy.Start(c.Proxy.HostOverrides)
			if err != nil {
				return nil, fail("proxy", err)
			}
			closers = append(closers, srv.Close)
			px := srv.Proxy()
			proxy = &px
		}
	}

	var (
		caps selenium.Capabilities
		addr string
		opts []uiflow.SessionOption
	)
	if c.IsRemote() {
		gp, err := p.Provider(c)
		if err != nil {
			if errors.Is(err, config.ErrMissingCredentials) {
				return nil, fail("credentials", err)
			}
			return nil, fail("grid", err)
		}
		if caps, err = gp.Capabilities(grid.RequestFrom(c, name)); err != nil {
			return nil, fail("grid", err)
		}
		// Grid devices are real hardware, not emulation profiles.
		if c.Device == "" {
			browser, err := Capabilities(c, nil)
			if err != nil {
				return nil, fail("config", err)
			}
			mergeMissing(caps, browser)
		}
		if addr, err = gp.Addr(); err != nil {
			return nil, fail("grid", err)
		}
		if t, ok := gp.(grid.Tunneler); ok && c.Grid.Tunnel {
			taddr, stop, err := t.StartTunnel()
			if err != nil {
				return nil, fail("tunnel", err)
			}
			closers = append(closers, stop)
			addr = taddr
		}
		opts = append(opts, uiflow.Remote(gp.Name()))
	} else {
		if caps, err = Capabilities(c, proxy); err != nil {
			return nil, fail("config", err)
		}
		start := p.startDriver
		if start == nil {
			start = p.startLocal
		}
		ld, err := start(ctx, c)
		if err != nil {
			return nil, err
		}
		closers = append(closers, ld.stop)
		addr = ld.addr
		if ld.display != "" {
			opts = append(opts, uiflow.Display(ld.display))
		}
	}

	glog.Infof("opening session %q: %s", name, c)
	newRemote := p.NewRemote
	if newRemote == nil {
		newRemote = selenium.NewRemote
	}
	wd, err := newRemote(caps, addr)
	if err != nil {
		return nil, fail("session", err)
	}
	setUp(wd, c)

	if c.Capture.Network && chromium(c.Browser) {
		opts = append(opts, uiflow.PerformanceLog())
	}
	for _, f := range closers {
		opts = append(opts, uiflow.OnRelease(f))
	}
	s := uiflow.NewSession(wd, opts...)
	glog.Infof("session %s ready", s.ID())
	return s, nil
}

// setUp applies the window and timeout settings that capabilities cannot
// carry. Failures are logged and ignored.
func setUp(wd selenium.WebDriver, c *config.Config) {
	if c.Timeouts.PageLoad > 0 {
		if err := wd.SetPageLoadTimeout(c.Timeouts.PageLoad); err != nil {
			glog.Warningf("setting the page load timeout: %v", err)
		}
	}
	switch {
	case c.Device != "":
	case !c.IsRemote() && !c.Headless:
		if err := wd.MaximizeWindow(""); err != nil {
			glog.Warningf("maximizing the window: %v", err)
		}
	default:
		if err := wd.ResizeWindow("", c.Window.Width, c.Window.Height); err != nil {
			glog.Warningf("resizing the window: %v", err)
		}
	}
}
