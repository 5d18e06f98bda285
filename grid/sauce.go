package grid

import (
	"fmt"
	"net"
	"net/url"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/sauce"
)

// Sauce drives browsers on Sauce Labs.
type Sauce struct {
	User, Key string
	// URL overrides the hub address, e.g. for another data center.
	URL string
	// Tunnel starts Sauce Connect from ConnectPath.
	Tunnel      bool
	ConnectPath string
}

// Name implements Provider.
func (*Sauce) Name() string { return "sauce" }

// Addr implements Provider.
func (s *Sauce) Addr() (string, error) {
	if s.URL == "" {
		return sauce.Addr(s.User, s.Key), nil
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("invalid hub URL %q: %v", s.URL, err)
	}
	u.User = url.UserPassword(s.User, s.Key)
	return u.String(), nil
}

// Capabilities implements Provider. Sauce-specific settings go under
// "sauce:options".
func (s *Sauce) Capabilities(r Request) (selenium.Capabilities, error) {
	opts := &sauce.Capabilities{
		TestName:         r.Name,
		BuildNumber:      r.Build,
		ScreenResolution: resolution(r),
		IdleTimeout:      300,
	}
	if r.Project != "" {
		opts.Tags = []string{r.Project}
	}
	m, err := opts.ToMap()
	if err != nil {
		return nil, err
	}
	caps := selenium.Capabilities{
		"browserName":   w3cBrowserName(r.Browser),
		"sauce:options": m,
	}
	if r.BrowserVersion != "" {
		caps["browserVersion"] = r.BrowserVersion
	}
	if r.OS != "" {
		platform := r.OS
		if r.OSVersion != "" {
			platform += " " + r.OSVersion
		}
		caps["platformName"] = platform
	}
	if r.Device != "" {
		caps["appium:deviceName"] = r.Device
	}
	return caps, nil
}

// Label implements Provider.
func (s *Sauce) Label(wd selenium.WebDriver, name string) error {
	_, err := wd.ExecuteScript("sauce:job-name="+name, nil)
	return err
}

// MarkStatus implements Provider. Sauce has no field for the reason; it is
// logged instead.
func (s *Sauce) MarkStatus(wd selenium.WebDriver, passed bool, reason string) error {
	result := "failed"
	if passed {
		result = "passed"
	}
	if reason != "" {
		glog.Infof("sauce job %s %s: %s", wd.SessionID(), result, reason)
	}
	_, err := wd.ExecuteScript("sauce:job-result="+result, nil)
	return err
}

// StartTunnel implements Tunneler with Sauce Connect.
func (s *Sauce) StartTunnel() (string, func() error, error) {
	if s.ConnectPath == "" {
		return "", nil, fmt.Errorf("sauce connect: no binary configured")
	}
	port, err := freePort()
	if err != nil {
		return "", nil, err
	}
	sc := &sauce.Connect{
		Path:                s.ConnectPath,
		UserName:            s.User,
		AccessKey:           s.Key,
		SeleniumPort:        port,
		QuitProcessUponExit: true,
	}
	glog.Infof("starting sauce connect on port %d", port)
	if err := sc.Start(); err != nil {
		return "", nil, fmt.Errorf("sauce connect: %v", err)
	}
	return sc.Addr(), sc.Stop, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}
