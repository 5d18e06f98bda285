//go:build e2e
// +build e2e

package scenarios

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/wanmail/uiflow/artifact"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/provision"
)

var configPath = flag.String("uiflow.config", "", "YAML configuration for the end-to-end run.")

// TestEndToEnd drives a real browser through every built-in scenario, as
// configured by the environment (BROWSER, HEADLESS, PROVIDER, ...).
func TestEndToEnd(t *testing.T) {
	c := config.Default()
	if *configPath != "" {
		var err error
		if c, err = config.Load(*configPath); err != nil {
			t.Fatalf("config.Load(%q) returned error: %v", *configPath, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		t.Fatalf("ApplyEnv() returned error: %v", err)
	}

	ctx := context.Background()
	capt, err := artifact.New(ctx, c.Artifacts)
	if err != nil {
		t.Fatalf("artifact.New() returned error: %v", err)
	}
	r := &Runner{Provisioner: &provision.Provisioner{}, Capturer: capt, Config: c}
	for _, res := range r.Run(ctx, Builtin()) {
		t.Run(res.Scenario, func(t *testing.T) {
			if !res.Passed() {
				t.Errorf("failed at %q after %v: %v (screenshot: %s)", res.Step, res.Duration, res.Err, res.Screenshot)
			}
		})
	}
}
