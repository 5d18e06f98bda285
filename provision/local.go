package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/internal/driver"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// localDriver is a driver process serving one session.
type localDriver struct {
	addr string
	// display is the X display of the frame buffer, if one runs.
	display string
	stop    func() error
}

func (p *Provisioner) installer(c *config.Config) *driver.Installer {
	if p.Installer != nil {
		return p.Installer
	}
	return driver.NewInstaller(c.Driver.Dir)
}

// driverPath returns the driver binary for c.Browser: the configured path,
// else a downloaded driver when installs are enabled, else one from PATH.
func (p *Provisioner) driverPath(ctx context.Context, c *config.Config) (string, error) {
	var configured, name string
	install := func() (string, error) { return "", nil }
	switch c.Browser {
	case config.Chrome:
		configured, name = c.Driver.ChromeDriver, "chromedriver"
		install = func() (string, error) {
			v, err := driver.DetectChromeVersion(c.Driver.ChromeBinary)
			if err != nil {
				return "", err
			}
			return p.installer(c).ChromeDriver(ctx, v.String())
		}
	case config.Firefox:
		configured, name = c.Driver.GeckoDriver, "geckodriver"
		install = func() (string, error) { return p.installer(c).GeckoDriver(ctx) }
	case config.Edge:
		configured, name = c.Driver.EdgeDriver, "msedgedriver"
	case config.Safari:
		configured, name = c.Driver.SafariDriver, "safaridriver"
	default:
		return "", fmt.Errorf("unknown browser %q", c.Browser)
	}
	if configured != "" {
		return configured, nil
	}
	if c.Driver.Install {
		path, err := install()
		if err != nil {
			return "", fmt.Errorf("installing %s: %v", name, err)
		}
		if path != "" {
			return path, nil
		}
	}
	path, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not configured and not in PATH: %v", name, err)
	}
	return path, nil
}

// serviceOutput opens the destination of driver logs.
func serviceOutput(c *config.Config) (io.Writer, func() error, error) {
	if c.Driver.Log != "" {
		f, err := os.OpenFile(c.Driver.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
	if c.Debug {
		return os.Stderr, func() error { return nil }, nil
	}
	return nil, func() error { return nil }, nil
}

// startLocal starts the driver for c.Browser on a local port.
func (p *Provisioner) startLocal(ctx context.Context, c *config.Config) (*localDriver, error) {
	path, err := p.driverPath(ctx, c)
	if err != nil {
		return nil, fail("driver", err)
	}
	port := c.Driver.Port
	if port == 0 {
		if port, err = freePort(); err != nil {
			return nil, fail("service", err)
		}
	}
	out, closeOut, err := serviceOutput(c)
	if err != nil {
		return nil, fail("service", err)
	}

	var opts []selenium.ServiceOption
	if out != nil {
		opts = append(opts, selenium.Output(out))
	}
	ld := &localDriver{}
	stops := []func() error{closeOut}
	cleanup := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
	if c.Driver.FrameBuffer && !c.Headless && c.Browser != config.Safari {
		if runtime.GOOS == "linux" {
			fb, err := selenium.NewFrameBuffer()
			if err != nil {
				cleanup()
				return nil, fail("service", fmt.Errorf("starting Xvfb: %v", err))
			}
			stops = append(stops, fb.Stop)
			opts = append(opts, selenium.Display(fb.Display, fb.AuthPath))
			ld.display = fb.Display
		} else {
			glog.Warningf("frame buffers need Xvfb; running %s on the desktop", c.Browser)
		}
	}

	glog.Infof("starting %s on port %d", path, port)
	switch c.Browser {
	case config.Chrome, config.Edge:
		svc, err := selenium.NewChromeDriverService(path, port, opts...)
		if err != nil {
			cleanup()
			return nil, fail("service", err)
		}
		ld.addr = fmt.Sprintf("http://localhost:%d/wd/hub", port)
		stops = append(stops, svc.Stop)
	case config.Firefox:
		svc, err := selenium.NewGeckoDriverService(path, port, opts...)
		if err != nil {
			cleanup()
			return nil, fail("service", err)
		}
		ld.addr = fmt.Sprintf("http://localhost:%d", port)
		stops = append(stops, svc.Stop)
	case config.Safari:
		addr := fmt.Sprintf("http://localhost:%d", port)
		svc, err := StartService(ctx, addr, out, path, "--port", strconv.Itoa(port))
		if err != nil {
			cleanup()
			return nil, fail("service", err)
		}
		ld.addr = svc.Addr()
		stops = append(stops, svc.Stop)
	}
	// The driver stops before the frame buffer it renders into.
	ld.stop = func() error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			if err := stops[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return ld, nil
}

// Prepare installs the local driver for c.Browser once and records its
// path in c, so that sessions provisioned from c share one download.
// Remote sessions, configured paths and disabled installs are left alone.
func (p *Provisioner) Prepare(ctx context.Context, c *config.Config) error {
	if c.IsRemote() || !c.Driver.Install {
		return nil
	}
	var (
		dst           *string
		chromeVersion string
	)
	switch c.Browser {
	case config.Chrome:
		if c.Driver.ChromeDriver != "" {
			return nil
		}
		v, err := driver.DetectChromeVersion(c.Driver.ChromeBinary)
		if err != nil {
			return fail("driver", err)
		}
		dst, chromeVersion = &c.Driver.ChromeDriver, v.String()
	case config.Firefox:
		if c.Driver.GeckoDriver != "" {
			return nil
		}
		dst = &c.Driver.GeckoDriver
	default:
		return nil
	}
	paths, err := p.installer(c).InstallAll(ctx, chromeVersion, string(c.Browser))
	if err != nil {
		return fail("driver", err)
	}
	*dst = paths[string(c.Browser)]
	glog.Infof("using %s for %s", *dst, c.Browser)
	return nil
}
