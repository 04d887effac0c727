//go:build !windows

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// newCommand starts the child in its own process group so cancellation
// reaches every process it forks. Cancel sends SIGTERM to the group and
// SIGKILL once the grace period elapses. The returned release func must be
// called after Wait; it stops the escalation timer and, when the run was
// canceled, kills whatever is left of the group.
func newCommand(ctx context.Context, path string, args []string, grace time.Duration) (*exec.Cmd, func(), error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	sig := syscall.SIGTERM
	if grace <= 0 {
		sig = syscall.SIGKILL
	}
	var (
		mu       sync.Mutex
		canceled bool
		escalate *time.Timer
	)
	cmd.Cancel = func() error {
		mu.Lock()
		canceled = true
		if sig != syscall.SIGKILL {
			escalate = time.AfterFunc(grace, func() {
				_ = signalGroup(cmd.Process, syscall.SIGKILL)
			})
		}
		mu.Unlock()
		return signalGroup(cmd.Process, sig)
	}
	cmd.WaitDelay = grace
	release := func() {
		mu.Lock()
		defer mu.Unlock()
		if escalate != nil {
			escalate.Stop()
		}
		if canceled {
			_ = signalGroup(cmd.Process, syscall.SIGKILL)
		}
	}
	return cmd, release, nil
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	if err := syscall.Kill(-p.Pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return p.Signal(sig)
	}
	return nil
}
