// Package config holds the single explicit configuration of a uiflow run.
//
// A Config is built once at process start by layering, in order: Default,
// an optional YAML file (Load), the environment (ApplyEnv) and command-line
// flags (RegisterFlags, ApplyFlags). Nothing else in this module reads the
// environment.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider selects where the browser runs.
type Provider string

// Providers.
const (
	Local        Provider = "local"
	BrowserStack Provider = "browserstack"
	Sauce        Provider = "sauce"
)

// Remote reports whether p is a cloud grid.
func (p Provider) Remote() bool { return p != "" && p != Local }

func (p *Provider) String() string { return string(*p) }

// Set implements flag.Value.
func (p *Provider) Set(v string) error {
	*p = Provider(strings.ToLower(strings.TrimSpace(v)))
	return nil
}

// Browser names a browser family.
type Browser string

// Browsers.
const (
	Chrome  Browser = "chrome"
	Firefox Browser = "firefox"
	Safari  Browser = "safari"
	Edge    Browser = "edge"
)

func (b *Browser) String() string { return string(*b) }

// Set implements flag.Value.
func (b *Browser) Set(v string) error {
	*b = Browser(strings.ToLower(strings.TrimSpace(v)))
	return nil
}

// Window is the browser window size in CSS pixels.
type Window struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Grid holds remote grid settings. User and Key are credentials.
type Grid struct {
	User string `yaml:"user"`
	Key  string `yaml:"key"`
	// URL overrides the provider's hub address.
	URL     string `yaml:"url"`
	Project string `yaml:"project"`
	Build   string `yaml:"build"`
	// Tunnel starts the provider's local tunnel binary, if supported.
	Tunnel     bool   `yaml:"tunnel"`
	TunnelPath string `yaml:"tunnelPath"`
}

// Timeouts bound every wait.
type Timeouts struct {
	// Default is the arrival budget of a local session.
	Default time.Duration `yaml:"default"`
	// Remote is the arrival budget on a remote grid or under device
	// emulation.
	Remote time.Duration `yaml:"remote"`
	// Short bounds optional waits of a local session, such as a consent
	// dialog that may never appear or one of several sign-up routes. It
	// scales with Remote on a remote grid or under device emulation.
	Short time.Duration `yaml:"short"`
	// Element is the per-candidate wait of the locator resolver.
	Element time.Duration `yaml:"element"`
	// Interval is the polling interval of every wait.
	Interval time.Duration `yaml:"interval"`
	// PageLoad is passed to the browser as its page load timeout.
	PageLoad time.Duration `yaml:"pageLoad"`
}

// Policy collects explicit relaxations of the arrival checks.
type Policy struct {
	// AcceptSignInRedirect accepts landing on the sign-in page where the
	// sign-up page was expected.
	AcceptSignInRedirect bool `yaml:"acceptSignInRedirect"`
}

// Capture controls what the browser records.
type Capture struct {
	// Network enables Chrome's performance log so that document HTTP status
	// codes can be checked.
	Network bool `yaml:"network"`
	// Screenshots captures a screenshot when a step fails.
	Screenshots bool `yaml:"screenshots"`
}

// Proxy routes the browser through a local SOCKS5 proxy.
type Proxy struct {
	// HostOverrides maps host names to the IP addresses they resolve to.
	HostOverrides map[string]string `yaml:"hostOverrides"`
}

// Artifacts says where failure screenshots go.
type Artifacts struct {
	Dir string `yaml:"dir"`
	// Bucket, if set, uploads artifacts to this Cloud Storage bucket too.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Driver configures local driver binaries.
type Driver struct {
	// Dir caches downloaded drivers.
	Dir string `yaml:"dir"`
	// Install downloads missing drivers.
	Install bool `yaml:"install"`

	ChromeDriver  string `yaml:"chromedriver"`
	GeckoDriver   string `yaml:"geckodriver"`
	EdgeDriver    string `yaml:"msedgedriver"`
	SafariDriver  string `yaml:"safaridriver"`
	ChromeBinary  string `yaml:"chromeBinary"`
	FirefoxBinary string `yaml:"firefoxBinary"`

	// FrameBuffer runs a headed local browser inside Xvfb.
	FrameBuffer bool `yaml:"frameBuffer"`
	// Port is the driver service port. Zero picks a free one.
	Port int `yaml:"port"`
	// Log, if set, receives driver service output.
	Log string `yaml:"log"`
}

// Config is the complete configuration of a run.
type Config struct {
	Provider       Provider `yaml:"provider"`
	Browser        Browser  `yaml:"browser"`
	BrowserVersion string   `yaml:"browserVersion"`
	OS             string   `yaml:"os"`
	OSVersion      string   `yaml:"osVersion"`
	Headless       bool     `yaml:"headless"`
	Window         Window   `yaml:"window"`
	// Device names an emulation profile such as "iPhone X" or "Pixel 2".
	Device string `yaml:"device"`
	// Extensions lists unpacked Chrome extension directories or .crx files.
	Extensions []string `yaml:"extensions"`

	// BaseURL is the application under test.
	BaseURL string `yaml:"baseURL"`
	// SearchURL is the search engine used by the search flows.
	SearchURL string `yaml:"searchURL"`
	// FindURL is the listing search front end.
	FindURL string `yaml:"findURL"`

	Grid      Grid      `yaml:"grid"`
	Timeouts  Timeouts  `yaml:"timeouts"`
	Policy    Policy    `yaml:"policy"`
	Capture   Capture   `yaml:"capture"`
	Proxy     Proxy     `yaml:"proxy"`
	Artifacts Artifacts `yaml:"artifacts"`
	Driver    Driver    `yaml:"driver"`

	Debug bool `yaml:"debug"`
}

// Default returns a complete configuration for a local headed Chrome.
func Default() *Config {
	return &Config{
		Provider:  Local,
		Browser:   Chrome,
		Window:    Window{Width: 1366, Height: 900},
		BaseURL:   "https://soft.reelly.io",
		SearchURL: "https://www.google.com",
		FindURL:   "https://find.reelly.io",
		Timeouts: Timeouts{
			Default:  25 * time.Second,
			Remote:   90 * time.Second,
			Short:    5 * time.Second,
			Element:  10 * time.Second,
			Interval: 250 * time.Millisecond,
			PageLoad: 60 * time.Second,
		},
		Capture:   Capture{Screenshots: true},
		Artifacts: Artifacts{Dir: "artifacts/screenshots"},
		Driver:    Driver{Dir: ".uiflow/drivers", Install: true},
	}
}

// Load returns Default overlaid with the YAML file at path. Unknown keys
// are an error.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return c, nil
}

// ParseBool accepts 1/true/yes/y/on as true, case-insensitively. Anything
// else is false.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// ApplyEnv overlays environment settings obtained through lookup, which is
// normally os.LookupEnv. Unset and empty variables leave c unchanged.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("BROWSER"); ok {
		c.Browser.Set(v)
	}
	if v, ok := get("PROVIDER"); ok {
		c.Provider.Set(v)
	}
	if v, ok := get("HEADLESS"); ok {
		c.Headless = ParseBool(v)
	}
	str("DEVICE", &c.Device)
	str("OS", &c.OS)
	str("OS_VERSION", &c.OSVersion)
	str("BROWSER_VERSION", &c.BrowserVersion)
	str("REELLY_BASE", &c.BaseURL)
	str("UIFLOW_ARTIFACT_BUCKET", &c.Artifacts.Bucket)

	switch c.Provider {
	case BrowserStack:
		str("BROWSERSTACK_USERNAME", &c.Grid.User)
		str("BROWSERSTACK_ACCESS_KEY", &c.Grid.Key)
	case Sauce:
		str("SAUCE_USERNAME", &c.Grid.User)
		str("SAUCE_ACCESS_KEY", &c.Grid.Key)
	}

	if v, ok := get("UIFLOW_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("UIFLOW_TIMEOUT: %v", err)
		}
		c.Timeouts.Default = d
	}
	return nil
}

// RegisterFlags defines command-line flags bound to c. Their defaults are
// c's current values.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Var(&c.Browser, "browser", "Browser to drive: chrome, firefox, safari or edge.")
	fs.Var(&c.Provider, "provider", "Where the browser runs: local, browserstack or sauce.")
	fs.StringVar(&c.BrowserVersion, "browser_version", c.BrowserVersion, "Browser version to request from a remote grid.")
	fs.StringVar(&c.OS, "os", c.OS, "Operating system to request from a remote grid.")
	fs.StringVar(&c.OSVersion, "os_version", c.OSVersion, "Operating system version to request from a remote grid.")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "If true, run the browser without a visible window.")
	fs.IntVar(&c.Window.Width, "window_width", c.Window.Width, "Browser window width.")
	fs.IntVar(&c.Window.Height, "window_height", c.Window.Height, "Browser window height.")
	fs.StringVar(&c.Device, "device", c.Device, "Device emulation profile, e.g. \"iPhone X\".")
	fs.StringVar(&c.BaseURL, "base_url", c.BaseURL, "Base URL of the application under test.")
	fs.DurationVar(&c.Timeouts.Default, "timeout", c.Timeouts.Default, "Arrival timeout of a local session.")
	fs.DurationVar(&c.Timeouts.Remote, "remote_timeout", c.Timeouts.Remote, "Arrival timeout on a remote grid or under device emulation.")
	fs.DurationVar(&c.Timeouts.Short, "short_timeout", c.Timeouts.Short, "Wait for optional elements and each sign-up route of a local session.")
	fs.DurationVar(&c.Timeouts.Element, "element_timeout", c.Timeouts.Element, "Per-candidate element wait.")
	fs.BoolVar(&c.Policy.AcceptSignInRedirect, "accept_sign_in_redirect", c.Policy.AcceptSignInRedirect, "If true, landing on the sign-in page counts as reaching sign-up.")
	fs.BoolVar(&c.Capture.Network, "capture_network", c.Capture.Network, "If true, check document HTTP status codes through Chrome's performance log.")
	fs.StringVar(&c.Artifacts.Dir, "artifact_dir", c.Artifacts.Dir, "Directory for failure screenshots.")
	fs.StringVar(&c.Artifacts.Bucket, "artifact_bucket", c.Artifacts.Bucket, "Cloud Storage bucket for failure screenshots.")
	fs.StringVar(&c.Driver.Dir, "driver_dir", c.Driver.Dir, "Directory caching downloaded drivers.")
	fs.BoolVar(&c.Driver.Install, "install_drivers", c.Driver.Install, "If true, download missing drivers.")
	fs.StringVar(&c.Driver.ChromeDriver, "chromedriver", c.Driver.ChromeDriver, "Path to chromedriver.")
	fs.StringVar(&c.Driver.GeckoDriver, "geckodriver", c.Driver.GeckoDriver, "Path to geckodriver.")
	fs.BoolVar(&c.Driver.FrameBuffer, "frame_buffer", c.Driver.FrameBuffer, "If true, run a headed local browser inside Xvfb.")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "If true, log every poll and WebDriver call.")
}

// ApplyFlags copies the flags explicitly set on fs onto c. fs must have
// been populated by RegisterFlags, possibly on another Config.
func (c *Config) ApplyFlags(fs *flag.FlagSet) error {
	own := flag.NewFlagSet("config", flag.ContinueOnError)
	c.RegisterFlags(own)
	var err error
	fs.Visit(func(f *flag.Flag) {
		if own.Lookup(f.Name) == nil || err != nil {
			return
		}
		err = own.Set(f.Name, f.Value.String())
	})
	return err
}

// IsRemote reports whether sessions run on a remote grid.
func (c *Config) IsRemote() bool { return c.Provider.Remote() }

// EffectiveTimeout is the arrival budget: Timeouts.Default locally, and the
// larger of Default and Remote on a remote grid or under device emulation.
func (c *Config) EffectiveTimeout() time.Duration {
	t := c.Timeouts.Default
	if (c.IsRemote() || c.Device != "") && c.Timeouts.Remote > t {
		t = c.Timeouts.Remote
	}
	return t
}

// ShortTimeout is the budget of optional waits: Timeouts.Short locally, and
// Short scaled by EffectiveTimeout/Default on a remote grid or under device
// emulation. It never exceeds EffectiveTimeout.
func (c *Config) ShortTimeout() time.Duration {
	eff := c.EffectiveTimeout()
	t := c.Timeouts.Short
	if eff > c.Timeouts.Default && c.Timeouts.Default > 0 {
		t = time.Duration(float64(t) * float64(eff) / float64(c.Timeouts.Default))
	}
	if t > eff {
		t = eff
	}
	return t
}

// ErrMissingCredentials is returned by Validate for a remote provider
// without a user or key.
var ErrMissingCredentials = errors.New("missing grid credentials")

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.Provider {
	case Local, BrowserStack, Sauce:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Browser {
	case Chrome, Firefox, Safari, Edge:
	default:
		return fmt.Errorf("unknown browser %q", c.Browser)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Window.Width, c.Window.Height)
	}
	for name, d := range map[string]time.Duration{
		"default":  c.Timeouts.Default,
		"remote":   c.Timeouts.Remote,
		"short":    c.Timeouts.Short,
		"element":  c.Timeouts.Element,
		"interval": c.Timeouts.Interval,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive, got %v", name, d)
		}
	}
	if c.IsRemote() && (c.Grid.User == "" || c.Grid.Key == "") {
		return fmt.Errorf("%s: %w", c.Provider, ErrMissingCredentials)
	}
	for host, ip := range c.Proxy.HostOverrides {
		if host == "" || ip == "" {
			return fmt.Errorf("invalid host override %q=%q", host, ip)
		}
	}
	return nil
}

// String returns a one-line summary without credentials.
func (c *Config) String() string {
	parts := []string{
		"provider=" + string(c.Provider),
		"browser=" + string(c.Browser),
		"headless=" + strconv.FormatBool(c.Headless),
		fmt.Sprintf("window=%dx%d", c.Window.Width, c.Window.Height),
	}
	if c.Device != "" {
		parts = append(parts, "device="+c.Device)
	}
	if c.BrowserVersion != "" {
		parts = append(parts, "browser_version="+c.BrowserVersion)
	}
	if len(c.Proxy.HostOverrides) > 0 {
		hosts := make([]string, 0, len(c.Proxy.HostOverrides))
		for h := range c.Proxy.HostOverrides {
			hosts = append(hosts, h)
		}
		sort.Strings(hosts)
		parts = append(parts, "overrides="+strings.Join(hosts, ","))
	}
	return strings.Join(parts, " ")
}
