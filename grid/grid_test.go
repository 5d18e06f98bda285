package grid

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tebeka/selenium"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/internal/fakewd"
)

func TestNewRequiresCredentials(t *testing.T) {
	for _, p := range []config.Provider{config.BrowserStack, config.Sauce} {
		c := config.Default()
		c.Provider = p
		c.Grid.User = "user"
		if _, err := New(c); !errors.Is(err, config.ErrMissingCredentials) {
			t.Errorf("New(%s without key) returned %v, want ErrMissingCredentials", p, err)
		}
		c.Grid.Key = "key"
		prov, err := New(c)
		if err != nil {
			t.Fatalf("New(%s) returned error: %v", p, err)
		}
		if got := prov.Name(); got != string(p) {
			t.Errorf("New(%s).Name() = %q", p, got)
		}
	}
	if _, err := New(config.Default()); err == nil {
		t.Errorf("New(local) returned nil error")
	}
}

func TestAddr(t *testing.T) {
	for _, tc := range []struct {
		p    Provider
		want string
	}{
		{&BrowserStack{User: "u", Key: "k"}, "https://u:k@hub-cloud.browserstack.com/wd/hub"},
		{&BrowserStack{User: "u", Key: "k", URL: "https://hub.example/wd/hub"}, "https://u:k@hub.example/wd/hub"},
		{&Sauce{User: "u", Key: "k"}, "http://u:k@ondemand.saucelabs.com/wd/hub"},
		{&Sauce{User: "u", Key: "k", URL: "https://ondemand.eu-central-1.saucelabs.com/wd/hub"}, "https://u:k@ondemand.eu-central-1.saucelabs.com/wd/hub"},
	} {
		got, err := tc.p.Addr()
		if err != nil {
			t.Fatalf("%s Addr() returned error: %v", tc.p.Name(), err)
		}
		if got != tc.want {
			t.Errorf("%s Addr() = %q, want %q", tc.p.Name(), got, tc.want)
		}
	}
}

func TestBrowserStackCapabilities(t *testing.T) {
	b := &BrowserStack{User: "u", Key: "k", Local: true}

	desktop, err := b.Capabilities(Request{
		Browser: "edge", BrowserVersion: "latest", OS: "Windows", OSVersion: "11",
		Width: 1920, Height: 1080, Name: "signup-title", Build: "run-1", Project: "reelly",
		NetworkLogs: true,
	})
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	want := selenium.Capabilities{
		"browserName":    "MicrosoftEdge",
		"browserVersion": "latest",
		"bstack:options": map[string]interface{}{
			"os":          "Windows",
			"osVersion":   "11",
			"resolution":  "1920x1080",
			"projectName": "reelly",
			"buildName":   "run-1",
			"sessionName": "signup-title",
			"local":       true,
			"networkLogs": true,
			"consoleLogs": "errors",
			"idleTimeout": float64(300),
		},
	}
	if diff := cmp.Diff(want, desktop); diff != "" {
		t.Errorf("Capabilities(desktop) returned diff (-want/+got):\n%s", diff)
	}

	mobile, err := b.Capabilities(Request{Browser: "safari", BrowserVersion: "17", Device: "iPhone 14", OSVersion: "16"})
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	opts := mobile["bstack:options"].(map[string]interface{})
	if opts["deviceName"] != "iPhone 14" || opts["realMobile"] != "true" {
		t.Errorf("Capabilities(mobile) options = %v", opts)
	}
	if _, ok := opts["os"]; ok {
		t.Errorf("Capabilities(mobile) set os: %v", opts)
	}
	if _, ok := mobile["browserVersion"]; ok {
		t.Errorf("Capabilities(mobile) set browserVersion: %v", mobile)
	}
}

func TestSauceCapabilities(t *testing.T) {
	s := &Sauce{User: "u", Key: "k"}
	got, err := s.Capabilities(Request{
		Browser: "firefox", BrowserVersion: "latest", OS: "Windows", OSVersion: "10",
		Width: 1280, Height: 1024, Name: "product-search", Build: "run-2", Project: "reelly",
	})
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	want := selenium.Capabilities{
		"browserName":    "firefox",
		"browserVersion": "latest",
		"platformName":   "Windows 10",
		"sauce:options": map[string]interface{}{
			"name":             "product-search",
			"build":            "run-2",
			"tags":             []interface{}{"reelly"},
			"screenResolution": "1280x1024",
			"idleTimeout":      float64(300),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capabilities() returned diff (-want/+got):\n%s", diff)
	}
}

func TestLabelAndStatus(t *testing.T) {
	for _, tc := range []struct {
		p    Provider
		want []string
	}{
		{&BrowserStack{}, []string{
			`browserstack_executor: {"action":"setSessionName","arguments":{"name":"filter-params"}}`,
			`browserstack_executor: {"action":"setSessionStatus","arguments":{"reason":"param pricePer missing","status":"failed"}}`,
			`browserstack_executor: {"action":"setSessionStatus","arguments":{"reason":"","status":"passed"}}`,
		}},
		{&Sauce{}, []string{
			"sauce:job-name=filter-params",
			"sauce:job-result=failed",
			"sauce:job-result=passed",
		}},
	} {
		wd := fakewd.New(nil)
		if err := tc.p.Label(wd, "filter-params"); err != nil {
			t.Fatalf("%s Label() returned error: %v", tc.p.Name(), err)
		}
		if err := tc.p.MarkStatus(wd, false, "param pricePer missing"); err != nil {
			t.Fatalf("%s MarkStatus() returned error: %v", tc.p.Name(), err)
		}
		if err := tc.p.MarkStatus(wd, true, ""); err != nil {
			t.Fatalf("%s MarkStatus() returned error: %v", tc.p.Name(), err)
		}
		if diff := cmp.Diff(tc.want, wd.Scripts()); diff != "" {
			t.Errorf("%s scripts returned diff (-want/+got):\n%s", tc.p.Name(), diff)
		}
	}
}

func TestMarkStatusTruncatesReason(t *testing.T) {
	wd := fakewd.New(nil)
	if err := (&BrowserStack{}).MarkStatus(wd, false, strings.Repeat("x", 1000)); err != nil {
		t.Fatalf("MarkStatus() returned error: %v", err)
	}
	got := wd.Scripts()[0]
	if !strings.Contains(got, strings.Repeat("x", 255)) || strings.Contains(got, strings.Repeat("x", 256)) {
		t.Errorf("MarkStatus() sent %q, want the reason cut to 255 bytes", got)
	}
}

func TestRequestFrom(t *testing.T) {
	c := config.Default()
	c.Browser = config.Safari
	c.Device = "iPhone X"
	c.Grid.Build = "b"
	c.Capture.Network = true
	got := RequestFrom(c, "signup-title")
	want := Request{Browser: "safari", Device: "iPhone X", Width: 1366, Height: 900, Name: "signup-title", Build: "b", NetworkLogs: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RequestFrom() returned diff (-want/+got):\n%s", diff)
	}
}

func TestSauceTunnelNeedsBinary(t *testing.T) {
	var tun Tunneler = &Sauce{User: "u", Key: "k"}
	if _, _, err := tun.StartTunnel(); err == nil {
		t.Errorf("StartTunnel() without a binary returned nil error")
	}
}
