// Package process runs external commands with bounded output capture,
// environment inheritance and signal-based cancellation.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/compozy/graphsync/pkg/logger"
)

const DefaultMaxOutput int64 = 1 << 20

var (
	ErrSpawn       = errors.New("failed to start process")
	ErrNonZeroExit = errors.New("process exited with non-zero status")
	ErrCanceled    = errors.New("process canceled")
)

// Invocation describes one command execution.
type Invocation struct {
	Command string
	Args    []string
	// Env is overlaid on the current process environment.
	Env         map[string]string
	Dir         string
	GracePeriod time.Duration
	MaxOutput   int64
}

type Outcome struct {
	PID             int
	ExitCode        int
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
	Duration        time.Duration
}

// ProcessError reports a failed invocation. It matches ErrSpawn,
// ErrNonZeroExit or ErrCanceled with errors.Is.
type ProcessError struct {
	Kind     error
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	switch {
	case errors.Is(e.Kind, ErrNonZeroExit):
		fmt.Fprintf(&b, "exit status %d", e.ExitCode)
	case e.Err != nil:
		fmt.Fprintf(&b, "%s: %s", e.Kind, e.Err)
	default:
		b.WriteString(e.Kind.Error())
	}
	if tail := lastLine(e.Stderr); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *ProcessError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

type Runner interface {
	Run(ctx context.Context, inv *Invocation) (*Outcome, error)
}

type ProcessRunner struct {
	lookPath func(string) (string, error)
}

func NewRunner() *ProcessRunner {
	return &ProcessRunner{lookPath: exec.LookPath}
}

// Run executes inv and blocks until the process exits. A non-nil Outcome is
// returned whenever the process was started, even on error.
func (r *ProcessRunner) Run(ctx context.Context, inv *Invocation) (*Outcome, error) {
	log := logger.FromContext(ctx)
	path, err := r.lookPath(inv.Command)
	if err != nil {
		return nil, &ProcessError{Kind: ErrSpawn, ExitCode: -1, Err: err}
	}
	cmd, release, err := newCommand(ctx, path, inv.Args, inv.GracePeriod)
	if err != nil {
		return nil, &ProcessError{Kind: ErrSpawn, ExitCode: -1, Err: err}
	}
	if strings.TrimSpace(inv.Dir) != "" {
		cmd.Dir = inv.Dir
	}
	cmd.Env = mergeEnvironment(inv.Env)
	limit := inv.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}
	stdoutBuf := newLimitedBuffer(limit)
	stderrBuf := newLimitedBuffer(limit)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &ProcessError{Kind: ErrSpawn, ExitCode: -1, Err: err}
	}
	log.Debug("Process started", "command", path, "pid", cmd.Process.Pid)
	waitErr := cmd.Wait()
	release()
	outcome := &Outcome{
		PID:             cmd.Process.Pid,
		ExitCode:        exitCode(cmd),
		Stdout:          stdoutBuf.String(),
		Stderr:          stderrBuf.String(),
		StdoutTruncated: stdoutBuf.Truncated(),
		StderrTruncated: stderrBuf.Truncated(),
		Duration:        time.Since(start),
	}
	log.Info(
		"Process exited",
		"command", path,
		"exit_code", outcome.ExitCode,
		"duration_ms", outcome.Duration.Milliseconds(),
		"stdout_bytes", stdoutBuf.Written(),
		"stderr_bytes", stderrBuf.Written(),
		"stdout_truncated", outcome.StdoutTruncated,
		"stderr_truncated", outcome.StderrTruncated,
	)
	return outcome, classifyWait(ctx, waitErr, outcome)
}

func classifyWait(ctx context.Context, waitErr error, outcome *Outcome) error {
	if ctx.Err() != nil {
		return &ProcessError{Kind: ErrCanceled, ExitCode: outcome.ExitCode, Err: context.Cause(ctx)}
	}
	if waitErr == nil {
		return nil
	}
	// Orphaned grandchildren holding the output pipes must not turn a
	// clean exit into a failure.
	if errors.Is(waitErr, exec.ErrWaitDelay) && outcome.ExitCode == 0 {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &ProcessError{Kind: ErrNonZeroExit, ExitCode: exitErr.ExitCode(), Stderr: outcome.Stderr, Err: waitErr}
	}
	return &ProcessError{Kind: ErrNonZeroExit, ExitCode: outcome.ExitCode, Stderr: outcome.Stderr, Err: waitErr}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
