package provision

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-rod/rod/lib/devices"
	"github.com/golang/glog"
	crx3 "github.com/mediabuyerbot/go-crx3"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"
	"github.com/wanmail/uiflow/config"
)

// edgeOptionsKey holds Chromium options for msedgedriver.
const edgeOptionsKey = "ms:edgeOptions"

var profiles = map[string]devices.Device{
	"iphone x":     devices.IPhoneX,
	"iphone 6/7/8": devices.IPhone6or7or8,
	"pixel 2":      devices.Pixel2,
	"pixel 2 xl":   devices.Pixel2XL,
	"galaxy s5":    devices.GalaxyS5,
	"ipad":         devices.IPad,
	"ipad pro":     devices.IPadPro,
	"moto g4":      devices.MotoG4,
}

// Device returns the emulation profile called name, ignoring case.
func Device(name string) (devices.Device, error) {
	d, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return devices.Device{}, fmt.Errorf("unknown device %q, want one of %s", name, strings.Join(DeviceNames(), ", "))
	}
	return d, nil
}

// DeviceNames lists the known emulation profiles.
func DeviceNames() []string {
	var names []string
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func w3cBrowserName(b config.Browser) string {
	if b == config.Edge {
		return "MicrosoftEdge"
	}
	return string(b)
}

func chromium(b config.Browser) bool { return b == config.Chrome || b == config.Edge }

// Capabilities returns the capabilities of a local session for c. A non-nil
// proxy routes the browser through it.
func Capabilities(c *config.Config, proxy *selenium.Proxy) (selenium.Capabilities, error) {
	caps := selenium.Capabilities{"browserName": w3cBrowserName(c.Browser)}
	var dev *devices.Device
	if c.Device != "" {
		d, err := Device(c.Device)
		if err != nil {
			return nil, err
		}
		dev = &d
	}

	switch c.Browser {
	case config.Chrome, config.Edge:
		opts, err := chromeOptions(c, dev)
		if err != nil {
			return nil, err
		}
		// Only the vendor key: chromedriver rejects the legacy
		// "chromeOptions" in W3C mode.
		if c.Browser == config.Edge {
			caps[edgeOptionsKey] = opts
		} else {
			caps[chrome.CapabilitiesKey] = opts
		}
		if c.Capture.Network {
			caps.AddLogging(log.Capabilities{log.Performance: log.All})
		}
	case config.Firefox:
		caps.AddFirefox(firefoxOptions(c, dev, proxy != nil))
	case config.Safari:
		if c.Headless {
			glog.Warningf("safari has no headless mode; running headed")
		}
		if dev != nil {
			glog.Warningf("safari cannot emulate %q; using the desktop viewport", c.Device)
		}
	default:
		return nil, fmt.Errorf("unknown browser %q", c.Browser)
	}
	if proxy != nil {
		caps.AddProxy(*proxy)
	}
	return caps, nil
}

func chromeOptions(c *config.Config, dev *devices.Device) (chrome.Capabilities, error) {
	opts := chrome.Capabilities{
		W3C: true,
		Args: []string{
			fmt.Sprintf("--window-size=%d,%d", c.Window.Width, c.Window.Height),
			"--disable-gpu",
			"--no-sandbox",
			"--disable-dev-shm-usage",
		},
	}
	if c.Headless {
		opts.Args = append([]string{"--headless=new"}, opts.Args...)
	}
	if c.Browser == config.Chrome {
		opts.Path = c.Driver.ChromeBinary
	}
	if dev != nil {
		touch := true
		opts.MobileEmulation = &chrome.MobileEmulation{
			DeviceMetrics: &chrome.DeviceMetrics{
				Width:      uint(dev.Screen.Vertical.Width),
				Height:     uint(dev.Screen.Vertical.Height),
				PixelRatio: dev.Screen.DevicePixelRatio,
				Touch:      &touch,
			},
			UserAgent: dev.UserAgent,
		}
	}
	if c.Capture.Network {
		enable := true
		opts.PerfLoggingPrefs = &chrome.PerfLoggingPreferences{EnableNetwork: &enable}
	}
	for _, ext := range c.Extensions {
		crx, err := packExtension(ext)
		if err != nil {
			return chrome.Capabilities{}, fmt.Errorf("extension %s: %v", ext, err)
		}
		if err := opts.AddExtension(crx); err != nil {
			return chrome.Capabilities{}, fmt.Errorf("extension %s: %v", ext, err)
		}
	}
	return opts, nil
}

// packExtension returns the path of a .crx file for ext, packing it first
// when ext is an unpacked extension directory.
func packExtension(ext string) (string, error) {
	e := crx3.Extension(ext)
	if !e.IsDir() {
		if _, err := os.Stat(ext); err != nil {
			return "", err
		}
		return ext, nil
	}
	dir, err := ioutil.TempDir("", "uiflow-crx")
	if err != nil {
		return "", err
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(filepath.Clean(ext))+".crx")
	if err := crx3.Pack(ext, dst, key); err != nil {
		return "", err
	}
	glog.V(1).Infof("packed %s into %s", ext, dst)
	return dst, nil
}

func firefoxOptions(c *config.Config, dev *devices.Device, proxied bool) firefox.Capabilities {
	w, h := c.Window.Width, c.Window.Height
	if dev != nil {
		w, h = dev.Screen.Vertical.Width, dev.Screen.Vertical.Height
	}
	opts := firefox.Capabilities{
		Binary: c.Driver.FirefoxBinary,
		Args:   []string{fmt.Sprintf("--width=%d", w), fmt.Sprintf("--height=%d", h)},
		Prefs:  map[string]interface{}{"layout.css.devPixelsPerPx": "1.0"},
	}
	if c.Headless {
		opts.Args = append([]string{"-headless"}, opts.Args...)
	}
	if dev != nil {
		opts.Prefs["general.useragent.override"] = dev.UserAgent
	}
	if proxied {
		opts.Prefs["network.proxy.socks_remote_dns"] = true
	}
	return opts
}

// mergeMissing copies the entries of src that dst lacks.
func mergeMissing(dst, src selenium.Capabilities) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}
