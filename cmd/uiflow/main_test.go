package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/grid"
	"github.com/wanmail/uiflow/scenarios"
)

func lookupIn(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func parseFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("uiflow", flag.ContinueOnError)
	config.Default().RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%q) returned error: %v", args, err)
	}
	return fs
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uiflow.yaml")
	yaml := "browser: firefox\nheadless: true\nwindow:\n  width: 800\n  height: 600\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("os.WriteFile() returned error: %v", err)
	}
	env := map[string]string{"HEADLESS": "0", "REELLY_BASE": "https://staging.reelly.io"}
	fs := parseFlags(t, "-window_width=1024")

	c, err := loadConfig(path, lookupIn(env), fs)
	if err != nil {
		t.Fatalf("loadConfig() returned error: %v", err)
	}
	if c.Browser != config.Firefox {
		t.Errorf("Browser = %q, want the file's %q", c.Browser, config.Firefox)
	}
	if c.Headless {
		t.Errorf("Headless = true, want the environment's false")
	}
	if c.BaseURL != "https://staging.reelly.io" {
		t.Errorf("BaseURL = %q, want the environment's", c.BaseURL)
	}
	if c.Window.Width != 1024 || c.Window.Height != 600 {
		t.Errorf("Window = %+v, want 1024x600", c.Window)
	}
}

func TestLoadConfigFlagProviderReadsCredentials(t *testing.T) {
	env := map[string]string{
		"PROVIDER":                "browserstack",
		"BROWSERSTACK_USERNAME":   "bs-user",
		"BROWSERSTACK_ACCESS_KEY": "bs-key",
		"SAUCE_USERNAME":          "sauce-user",
		"SAUCE_ACCESS_KEY":        "sauce-key",
	}
	c, err := loadConfig("", lookupIn(env), parseFlags(t, "-provider=sauce"))
	if err != nil {
		t.Fatalf("loadConfig() returned error: %v", err)
	}
	if c.Provider != config.Sauce {
		t.Errorf("Provider = %q, want %q", c.Provider, config.Sauce)
	}
	if c.Grid.User != "sauce-user" || c.Grid.Key != "sauce-key" {
		t.Errorf("Grid credentials = %q/%q, want the Sauce ones", c.Grid.User, c.Grid.Key)
	}
}

func TestLoadConfigFlagProviderKeepsFileCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uiflow.yaml")
	yaml := "grid:\n  user: file-user\n  key: file-key\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("os.WriteFile() returned error: %v", err)
	}
	env := map[string]string{"SAUCE_ACCESS_KEY": "sauce-key"}
	c, err := loadConfig(path, lookupIn(env), parseFlags(t, "-provider=sauce"))
	if err != nil {
		t.Fatalf("loadConfig() returned error: %v", err)
	}
	if c.Grid.User != "file-user" || c.Grid.Key != "sauce-key" {
		t.Errorf("Grid credentials = %q/%q, want file-user/sauce-key", c.Grid.User, c.Grid.Key)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), lookupIn(nil), parseFlags(t)); err == nil {
		t.Errorf("loadConfig() with a missing file returned nil error")
	}
}

type failingProvisioner struct{}

func (failingProvisioner) ProvisionNamed(context.Context, *config.Config, string) (*uiflow.Session, error) {
	return nil, errors.New("no browser")
}

func (failingProvisioner) Provider(*config.Config) (grid.Provider, error) {
	return nil, errors.New("no grid")
}

type closeRecorder struct{ closed int }

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestRunClosesArtifactsOnFailure(t *testing.T) {
	r := &scenarios.Runner{Provisioner: failingProvisioner{}, Config: config.Default(), RunID: "test"}
	capt := &closeRecorder{}
	var out bytes.Buffer

	failed := run(context.Background(), r, []scenarios.Scenario{{Name: "one"}, {Name: "two"}}, capt, &out)
	if failed != 2 {
		t.Errorf("run() = %d failed, want 2", failed)
	}
	if capt.closed != 1 {
		t.Errorf("artifact storage closed %d times, want 1", capt.closed)
	}
	if !strings.Contains(out.String(), "0 passed, 2 failed") {
		t.Errorf("run() wrote %q, want the summary", out.String())
	}
}
