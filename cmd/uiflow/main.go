// Binary uiflow runs the end-to-end scenarios against a local browser or a
// hosted browser grid.
//
//	uiflow [flags] [scenario...]
//
// With no scenario names every built-in scenario runs. The exit status is 1
// when any scenario failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/artifact"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/provision"
	"github.com/wanmail/uiflow/scenarios"
)

var (
	configPath = flag.String("config", "", "Path to a YAML configuration file.")
	envFile    = flag.String("env_file", ".env", "File of KEY=value lines, such as grid credentials, loaded into the environment if it exists.")
	list       = flag.Bool("list", false, "If true, list the scenarios and exit.")
	parallel   = flag.Int("parallel", 1, "Number of scenarios to run at once, each in its own browser.")
)

// loadConfig layers the YAML file at path, the environment and the flags
// explicitly set on fs over the defaults.
func loadConfig(path string, lookup func(string) (string, bool), fs *flag.FlagSet) (*config.Config, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	provider := c.Provider
	if err := c.ApplyFlags(fs); err != nil {
		return nil, err
	}
	// A provider chosen by flag takes its credentials from the environment,
	// where set.
	if c.Provider != provider && c.IsRemote() {
		creds := &config.Config{Provider: c.Provider}
		err := creds.ApplyEnv(func(k string) (string, bool) {
			if k == "PROVIDER" {
				return "", false
			}
			return lookup(k)
		})
		if err != nil {
			return nil, err
		}
		if creds.Grid.User != "" {
			c.Grid.User = creds.Grid.User
		}
		if creds.Grid.Key != "" {
			c.Grid.Key = creds.Grid.Key
		}
	}
	return c, nil
}

// run runs scs, writes the summary to w and closes capt. It returns the
// number of failed scenarios.
func run(ctx context.Context, r *scenarios.Runner, scs []scenarios.Scenario, capt io.Closer, w io.Writer) int {
	failed := scenarios.Summarize(w, r.Run(ctx, scs))
	if err := capt.Close(); err != nil {
		glog.Warningf("Unable to close artifact storage: %v", err)
	}
	return failed
}

func main() {
	config.Default().RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [scenario...]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()

	if *list {
		for _, n := range scenarios.Names() {
			fmt.Println(n)
		}
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		glog.Exitf("Unable to load %s: %v", *envFile, err)
	}
	c, err := loadConfig(*configPath, os.LookupEnv, flag.CommandLine)
	if err != nil {
		glog.Exitf("Invalid configuration: %v", err)
	}
	uiflow.SetDebug(c.Debug)

	scs, err := scenarios.Select(flag.Args()...)
	if err != nil {
		glog.Exit(err)
	}

	runID := uuid.NewString()
	if c.Artifacts.Bucket != "" && c.Artifacts.Prefix == "" {
		c.Artifacts.Prefix = path.Join("runs", runID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	capt, err := artifact.New(ctx, c.Artifacts)
	if err != nil {
		glog.Exitf("Unable to set up artifact storage: %v", err)
	}

	r := &scenarios.Runner{
		Provisioner: &provision.Provisioner{},
		Capturer:    capt,
		Config:      c,
		Parallel:    *parallel,
		RunID:       runID,
	}
	failed := run(ctx, r, scs, capt, os.Stdout)
	stop()
	if failed > 0 {
		glog.Flush()
		os.Exit(1)
	}
}
