package scenarios

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/config"
	"github.com/wanmail/uiflow/grid"
	"github.com/wanmail/uiflow/pages"
	"golang.org/x/sync/errgroup"
)

// ProvisionStep is the step reported when no session could be created.
const ProvisionStep = "provision"

// Provisioner creates the session of one scenario. It is implemented by
// *provision.Provisioner.
type Provisioner interface {
	ProvisionNamed(ctx context.Context, c *config.Config, name string) (*uiflow.Session, error)
	Provider(c *config.Config) (grid.Provider, error)
}

// Preparer is implemented by provisioners that set up shared resources,
// such as downloaded drivers, once per run. It is implemented by
// *provision.Provisioner.
type Preparer interface {
	Prepare(ctx context.Context, c *config.Config) error
}

// Capturer stores a screenshot of a failed step. It is implemented by
// *artifact.Capturer.
type Capturer interface {
	Capture(s *uiflow.Session, scenario, step string) (string, error)
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario string
	// Step is the failed step, or empty when the scenario passed.
	Step string
	Err  error
	// Screenshot is where the failure screenshot was stored, if anywhere.
	Screenshot string
	Duration   time.Duration
}

// Passed reports whether every step succeeded.
func (r Result) Passed() bool { return r.Err == nil }

// Runner runs scenarios.
type Runner struct {
	Provisioner Provisioner
	// Capturer takes failure screenshots. Nil disables them.
	Capturer Capturer
	Config   *config.Config
	// Parallel bounds the scenarios running at once. Below one means one.
	Parallel int
	// RunID names this run in grid builds. Empty means a random UUID.
	RunID string
}

// Run runs every scenario and returns their results in the same order.
func (r *Runner) Run(ctx context.Context, scs []Scenario) []Result {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	c := *r.Config
	if c.Grid.Build == "" {
		c.Grid.Build = "uiflow-" + r.RunID
	}
	limit := r.Parallel
	if limit < 1 {
		limit = 1
	}
	glog.Infof("run %s: %d scenarios, %d at a time", r.RunID, len(scs), limit)

	results := make([]Result, len(scs))
	if pr, ok := r.Provisioner.(Preparer); ok {
		if err := pr.Prepare(ctx, &c); err != nil {
			glog.Errorf("run %s: %v", r.RunID, err)
			for i, sc := range scs {
				results[i] = Result{Scenario: sc.Name, Step: ProvisionStep, Err: err}
			}
			return results
		}
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, sc := range scs {
		i, sc := i, sc
		g.Go(func() error {
			cc := c
			results[i] = r.runOne(ctx, &cc, sc)
			return nil
		})
	}
	g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, c *config.Config, sc Scenario) (res Result) {
	res.Scenario = sc.Name
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	s, err := r.Provisioner.ProvisionNamed(ctx, c, sc.Name)
	if err != nil {
		res.Step, res.Err = ProvisionStep, err
		glog.Errorf("scenario %s: %v", sc.Name, err)
		return res
	}
	defer func() {
		if err := s.Release(); err != nil {
			glog.Warningf("releasing the session of %s: %v", sc.Name, err)
		}
	}()
	gp := r.dashboard(s, c, sc.Name)

	w := &World{Session: s, Config: c, Pages: pages.New(s, c)}
	for _, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			res.Step, res.Err = st.Name, err
			break
		}
		glog.Infof("%s: %s", sc.Name, st.Name)
		if err := st.Run(w); err != nil {
			res.Step, res.Err = st.Name, err
			break
		}
	}

	if res.Err != nil {
		glog.Errorf("scenario %s failed at %q: %v", sc.Name, res.Step, res.Err)
		if r.Capturer != nil && c.Capture.Screenshots {
			loc, err := r.Capturer.Capture(s, sc.Name, res.Step)
			if err != nil {
				glog.Warningf("screenshot of %s: %v", sc.Name, err)
			}
			res.Screenshot = loc
		}
	}
	if gp != nil {
		reason := "passed"
		if res.Err != nil {
			reason = fmt.Sprintf("%s: %v", res.Step, res.Err)
		}
		if wd, err := s.Driver(); err == nil {
			if err := gp.MarkStatus(wd, res.Err == nil, reason); err != nil {
				glog.Warningf("marking %s on %s: %v", sc.Name, gp.Name(), err)
			}
		}
	}
	return res
}

// dashboard labels a remote session and returns its grid. It returns nil
// for local sessions or when the grid cannot be reached.
func (r *Runner) dashboard(s *uiflow.Session, c *config.Config, name string) grid.Provider {
	if !s.IsRemote() {
		return nil
	}
	gp, err := r.Provisioner.Provider(c)
	if err != nil {
		glog.Warningf("grid dashboard: %v", err)
		return nil
	}
	wd, err := s.Driver()
	if err != nil {
		return nil
	}
	if err := gp.Label(wd, name); err != nil {
		glog.Warningf("labelling %s on %s: %v", name, gp.Name(), err)
	}
	return gp
}

// Summarize writes one line per result and returns the number of failed
// scenarios.
func Summarize(w io.Writer, results []Result) int {
	failed := 0
	for _, res := range results {
		d := res.Duration.Round(time.Millisecond)
		if res.Passed() {
			fmt.Fprintf(w, "PASS %s (%v)\n", res.Scenario, d)
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %s (%v) at %q: %v\n", res.Scenario, d, res.Step, res.Err)
		if res.Screenshot != "" {
			fmt.Fprintf(w, "     screenshot: %s\n", res.Screenshot)
		}
	}
	fmt.Fprintf(w, "%d passed, %d failed\n", len(results)-failed, failed)
	return failed
}
