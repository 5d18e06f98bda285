package grid

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tebeka/selenium"
)

// BrowserStack drives browsers on BrowserStack Automate.
type BrowserStack struct {
	User, Key string
	// URL overrides the hub address.
	URL string
	// Local enables BrowserStack Local for the session.
	Local bool
}

// BrowserStackOptions are the vendor options sent under "bstack:options".
//
// See https://www.browserstack.com/docs/automate/capabilities for the
// meaning of each field.
type BrowserStackOptions struct {
	OS              string `json:"os,omitempty"`
	OSVersion       string `json:"osVersion,omitempty"`
	DeviceName      string `json:"deviceName,omitempty"`
	RealMobile      string `json:"realMobile,omitempty"`
	ProjectName     string `json:"projectName,omitempty"`
	BuildName       string `json:"buildName,omitempty"`
	SessionName     string `json:"sessionName,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Local           bool   `json:"local,omitempty"`
	SeleniumVersion string `json:"seleniumVersion,omitempty"`
	NetworkLogs     bool   `json:"networkLogs,omitempty"`
	ConsoleLogs     string `json:"consoleLogs,omitempty"`
	IdleTimeout     int    `json:"idleTimeout,omitempty"`
}

// ToMap returns the options as a generic map.
func (o *BrowserStackOptions) ToMap() (map[string]interface{}, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements Provider.
func (*BrowserStack) Name() string { return "browserstack" }

// Addr implements Provider.
func (b *BrowserStack) Addr() (string, error) {
	base := b.URL
	if base == "" {
		base = "https://hub-cloud.browserstack.com/wd/hub"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid hub URL %q: %v", base, err)
	}
	u.User = url.UserPassword(b.User, b.Key)
	return u.String(), nil
}

// Capabilities implements Provider. A device request asks for a real
// device and leaves the OS and resolution to it.
func (b *BrowserStack) Capabilities(r Request) (selenium.Capabilities, error) {
	opts := &BrowserStackOptions{
		ProjectName: r.Project,
		BuildName:   r.Build,
		SessionName: r.Name,
		Local:       b.Local,
		NetworkLogs: r.NetworkLogs,
		ConsoleLogs: "errors",
		IdleTimeout: 300,
	}
	if r.Device != "" {
		opts.DeviceName = r.Device
		opts.RealMobile = "true"
		opts.OSVersion = r.OSVersion
	} else {
		opts.OS = r.OS
		opts.OSVersion = r.OSVersion
		opts.Resolution = resolution(r)
	}
	m, err := opts.ToMap()
	if err != nil {
		return nil, err
	}
	caps := selenium.Capabilities{
		"browserName":    w3cBrowserName(r.Browser),
		"bstack:options": m,
	}
	if r.BrowserVersion != "" && r.Device == "" {
		caps["browserVersion"] = r.BrowserVersion
	}
	return caps, nil
}

// executor sends a command through BrowserStack's script side channel.
func (b *BrowserStack) executor(wd selenium.WebDriver, action string, args interface{}) error {
	cmd, err := json.Marshal(struct {
		Action    string      `json:"action"`
		Arguments interface{} `json:"arguments"`
	}{action, args})
	if err != nil {
		return err
	}
	_, err = wd.ExecuteScript("browserstack_executor: "+string(cmd), nil)
	return err
}

// Label implements Provider.
func (b *BrowserStack) Label(wd selenium.WebDriver, name string) error {
	return b.executor(wd, "setSessionName", map[string]string{"name": name})
}

// MarkStatus implements Provider.
func (b *BrowserStack) MarkStatus(wd selenium.WebDriver, passed bool, reason string) error {
	status := "failed"
	if passed {
		status = "passed"
	}
	return b.executor(wd, "setSessionStatus", map[string]string{"status": status, "reason": truncate(reason, 255)})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
