package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/golang/glog"
)

// execCommand is replaced in tests.
var execCommand = exec.Command

// Status polling of a starting driver.
var (
	statusAttempts = 30
	statusInterval = time.Second
)

// Service is a driver process that speaks WebDriver on a local port, for
// drivers the WebDriver client cannot start itself (safaridriver).
type Service struct {
	addr string
	cmd  *exec.Cmd
}

// StartService runs bin with args and waits until addr answers /status.
func StartService(ctx context.Context, addr string, output io.Writer, bin string, args ...string) (*Service, error) {
	cmd := execCommand(bin, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	s := &Service{addr: addr, cmd: cmd}
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Addr is the WebDriver endpoint.
func (s *Service) Addr() string { return s.addr }

func (s *Service) start(ctx context.Context) error {
	if err := s.cmd.Start(); err != nil {
		return err
	}
	glog.V(1).Infof("started %s (pid %d)", s.cmd.Path, s.cmd.Process.Pid)

	for i := 0; i < statusAttempts; i++ {
		select {
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-time.After(statusInterval):
		}
		req, err := http.NewRequest(http.MethodGet, s.addr+"/status", nil)
		if err != nil {
			s.Stop()
			return err
		}
		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
	s.Stop()
	return fmt.Errorf("%s did not respond at %s", s.cmd.Path, s.addr)
}

// Stop kills the driver and waits for it to exit.
func (s *Service) Stop() error {
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	if err := s.cmd.Wait(); err != nil && err.Error() != "signal: killed" {
		return err
	}
	return nil
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}
