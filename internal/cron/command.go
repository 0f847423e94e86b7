package cron

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// maxCapturedOutput bounds how much combined output is logged per run.
const maxCapturedOutput = 4096

// CommandTask runs an external program. Stdout and stderr are captured
// and logged after the process exits.
type CommandTask struct {
	JobName string
	Expr    string
	Argv    []string
	Dir     string
	Env     []string      // appended to the parent environment
	Timeout time.Duration // zero means no timeout
	Logger  *slog.Logger
}

// Compile-time interface check.
var _ Job = (*CommandTask)(nil)

// Name implements Job.
func (c *CommandTask) Name() string { return c.JobName }

// Schedule implements Job.
func (c *CommandTask) Schedule() string { return c.Expr }

// Run implements Job. A non-zero exit status is returned as an error that
// unwraps to *exec.ExitError.
func (c *CommandTask) Run(ctx context.Context) error {
	if len(c.Argv) == 0 {
		return errors.New("empty command")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if out.Len() > 0 {
		logger.Info("cron: command output",
			"job", c.JobName,
			"output", truncate(out.String(), maxCapturedOutput),
		)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("command %s timed out after %s: %w", c.Argv[0], c.Timeout, err)
		}
		return fmt.Errorf("command %s: %w", c.Argv[0], err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
