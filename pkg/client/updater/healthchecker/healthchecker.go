package healthchecker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single health check command.
const DefaultTimeout = time.Minute

// HealthChecker decides whether the deployment works after an update.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type shellHealthChecker struct {
	cmd     []string
	dir     string
	timeout time.Duration
}

// NewShellHealthChecker creates a HealthChecker which runs cmd inside dir.
// A zero exit code means healthy, an empty cmd is always healthy.
func NewShellHealthChecker(cmd []string, dir string, timeout time.Duration) HealthChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &shellHealthChecker{
		cmd:     cmd,
		dir:     dir,
		timeout: timeout,
	}
}

func (s *shellHealthChecker) HealthCheck(ctx context.Context) error {
	if len(s.cmd) == 0 {
		log.Debug("no command to execute, assuming healthy")
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var output bytes.Buffer
	c := exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...)
	c.Dir = s.dir
	c.Stdout = &output
	c.Stderr = &output
	log.Debugf("running health check %q", strings.Join(s.cmd, " "))
	if err := c.Run(); err != nil {
		return fmt.Errorf("health check %q failed: %w: %s", s.cmd[0], err, strings.TrimSpace(output.String()))
	}
	return nil
}
