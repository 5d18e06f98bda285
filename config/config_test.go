package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() returned error: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envLookup(map[string]string{
		"BROWSER":                 "Firefox",
		"HEADLESS":                "yes",
		"PROVIDER":                "browserstack",
		"DEVICE":                  "iPhone X",
		"OS":                      "Windows",
		"OS_VERSION":              "11",
		"BROWSER_VERSION":         "latest",
		"REELLY_BASE":             "https://staging.reelly.io",
		"BROWSERSTACK_USERNAME":   "user",
		"BROWSERSTACK_ACCESS_KEY": "key",
		"SAUCE_USERNAME":          "ignored",
		"UIFLOW_ARTIFACT_BUCKET":  "bucket",
		"UIFLOW_TIMEOUT":          "40s",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() returned error: %v", err)
	}

	want := Default()
	want.Browser = Firefox
	want.Headless = true
	want.Provider = BrowserStack
	want.Device = "iPhone X"
	want.OS = "Windows"
	want.OSVersion = "11"
	want.BrowserVersion = "latest"
	want.BaseURL = "https://staging.reelly.io"
	want.Grid.User = "user"
	want.Grid.Key = "key"
	want.Artifacts.Bucket = "bucket"
	want.Timeouts.Default = 40 * time.Second
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("ApplyEnv() returned diff (-want/+got):\n%s", diff)
	}
}

func TestApplyEnvEmptyValuesKeepDefaults(t *testing.T) {
	c := Default()
	if err := c.ApplyEnv(envLookup(map[string]string{"BROWSER": " ", "REELLY_BASE": ""})); err != nil {
		t.Fatalf("ApplyEnv() returned error: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("ApplyEnv() returned diff (-want/+got):\n%s", diff)
	}
	if err := c.ApplyEnv(envLookup(map[string]string{"UIFLOW_TIMEOUT": "soon"})); err == nil {
		t.Errorf("ApplyEnv(UIFLOW_TIMEOUT=soon) returned nil, want an error")
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{
		"1": true, "true": true, "YES": true, "y": true, " on ": true,
		"0": false, "false": false, "": false, "maybe": false,
	} {
		if got := ParseBool(in); got != want {
			t.Errorf("ParseBool(%q) = %t, want %t", in, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uiflow.yaml")
	const data = `
browser: edge
headless: true
window:
  width: 1280
  height: 720
timeouts:
  default: 30s
  short: 8s
policy:
  acceptSignInRedirect: true
proxy:
  hostOverrides:
    soft.reelly.io: 10.0.0.7
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) returned error: %v", path, err)
	}
	want := Default()
	want.Browser = Edge
	want.Headless = true
	want.Window = Window{Width: 1280, Height: 720}
	want.Timeouts.Default = 30 * time.Second
	want.Timeouts.Short = 8 * time.Second
	want.Policy.AcceptSignInRedirect = true
	want.Proxy.HostOverrides = map[string]string{"soft.reelly.io": "10.0.0.7"}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load(%q) returned diff (-want/+got):\n%s", path, diff)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("brwoser: chrome\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Errorf("Load(%q) with an unknown key returned nil error", bad)
	}
	if c, err := Load(""); err != nil || c.Browser != Chrome {
		t.Errorf("Load(\"\") = %v, %v, want the defaults", c, err)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	bound := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	bound.RegisterFlags(fs)
	if err := fs.Parse([]string{"-browser=safari", "-timeout=5s", "-short_timeout=2s", "-accept_sign_in_redirect"}); err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	c := Default()
	if err := c.ApplyEnv(envLookup(map[string]string{"BROWSER": "firefox", "HEADLESS": "1"})); err != nil {
		t.Fatalf("ApplyEnv() returned error: %v", err)
	}
	if err := c.ApplyFlags(fs); err != nil {
		t.Fatalf("ApplyFlags() returned error: %v", err)
	}
	if c.Browser != Safari {
		t.Errorf("Browser = %q, want %q", c.Browser, Safari)
	}
	if !c.Headless {
		t.Errorf("Headless = false, want the environment's true to survive unset flags")
	}
	if c.Timeouts.Default != 5*time.Second {
		t.Errorf("Timeouts.Default = %v, want 5s", c.Timeouts.Default)
	}
	if c.Timeouts.Short != 2*time.Second {
		t.Errorf("Timeouts.Short = %v, want 2s", c.Timeouts.Short)
	}
	if !c.Policy.AcceptSignInRedirect {
		t.Errorf("Policy.AcceptSignInRedirect = false, want true")
	}
}

func TestEffectiveTimeout(t *testing.T) {
	for _, tc := range []struct {
		name     string
		provider Provider
		device   string
		want     time.Duration
	}{
		{"local", Local, "", 25 * time.Second},
		{"device", Local, "Pixel 2", 90 * time.Second},
		{"grid", Sauce, "", 90 * time.Second},
	} {
		c := Default()
		c.Provider = tc.provider
		c.Device = tc.device
		if got := c.EffectiveTimeout(); got != tc.want {
			t.Errorf("%s: EffectiveTimeout() = %v, want %v", tc.name, got, tc.want)
		}
	}

	c := Default()
	c.Provider = BrowserStack
	c.Timeouts.Default = 2 * time.Minute
	if got := c.EffectiveTimeout(); got != 2*time.Minute {
		t.Errorf("EffectiveTimeout() = %v, want the larger default", got)
	}
}

func TestShortTimeout(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		want   time.Duration
	}{
		{"local", func(c *Config) {}, 5 * time.Second},
		{"device", func(c *Config) { c.Device = "Pixel 2" }, 18 * time.Second},
		{"grid", func(c *Config) { c.Provider = Sauce }, 18 * time.Second},
		{"longer remote", func(c *Config) {
			c.Provider = BrowserStack
			c.Timeouts.Remote = 2 * time.Minute
		}, 24 * time.Second},
		{"capped", func(c *Config) { c.Timeouts.Short = time.Minute }, 25 * time.Second},
	} {
		c := Default()
		tc.mutate(c)
		if got := c.ShortTimeout(); got != tc.want {
			t.Errorf("%s: ShortTimeout() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Provider = "lambdatest" }},
		{"browser", func(c *Config) { c.Browser = "opera" }},
		{"window", func(c *Config) { c.Window.Width = 0 }},
		{"timeout", func(c *Config) { c.Timeouts.Element = 0 }},
		{"short timeout", func(c *Config) { c.Timeouts.Short = -time.Second }},
		{"override", func(c *Config) { c.Proxy.HostOverrides = map[string]string{"a.example": ""} }},
	} {
		c := Default()
		tc.mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: Validate() returned nil, want an error", tc.name)
		}
	}

	c := Default()
	c.Provider = Sauce
	c.Grid.User = "u"
	if err := c.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Validate() without a key returned %v, want ErrMissingCredentials", err)
	}
}

func TestString(t *testing.T) {
	c := Default()
	c.Grid.Key = "secret"
	c.Proxy.HostOverrides = map[string]string{"b.example": "1.1.1.1", "a.example": "2.2.2.2"}
	const want = "provider=local browser=chrome headless=false window=1366x900 overrides=a.example,b.example"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
