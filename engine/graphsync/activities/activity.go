// Package activities implements the graph sync Activity Executor.
package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/compozy/graphsync/engine/core"
	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/infra/cache"
	"github.com/compozy/graphsync/engine/process"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/spf13/afero"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

type FailureMode string

const (
	// FailureReport returns every failure as a result value.
	FailureReport FailureMode = "report"
	// FailurePropagate returns failures as application errors so the
	// engine's retry policy applies.
	FailurePropagate FailureMode = "propagate"
)

type Settings struct {
	FailureMode       FailureMode
	HeartbeatInterval time.Duration
	GracePeriod       time.Duration
	MaxOutput         int64
	LockKey           string
	LockTTL           time.Duration
	LockWait          time.Duration
	LockRetry         time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FailureMode:       FailureMode(cfg.Sync.FailureMode),
		HeartbeatInterval: cfg.Sync.HeartbeatInterval,
		GracePeriod:       cfg.Sync.CancelGracePeriod,
		MaxOutput:         cfg.Sync.MaxOutputBytes,
		LockKey:           cfg.Lock.Key,
		LockTTL:           cfg.Lock.TTL,
		LockWait:          cfg.Lock.WaitTimeout,
		LockRetry:         cfg.Lock.RetryInterval,
	}
}

// Activities runs the external ingestion tool. Options are fixed for the
// lifetime of the worker; locks is nil when the lock is disabled.
type Activities struct {
	opts     *graphsync.Options
	runner   process.Runner
	locks    cache.LockManager
	fs       afero.Fs
	settings Settings
}

type Option func(*Activities)

func WithLockManager(m cache.LockManager) Option {
	return func(a *Activities) { a.locks = m }
}

func WithFs(fs afero.Fs) Option {
	return func(a *Activities) { a.fs = fs }
}

func NewActivities(
	opts *graphsync.Options,
	runner process.Runner,
	settings Settings,
	options ...Option,
) *Activities {
	a := &Activities{
		opts:     opts,
		runner:   runner,
		fs:       afero.NewOsFs(),
		settings: settings,
	}
	for _, o := range options {
		o(a)
	}
	if a.settings.FailureMode == "" {
		a.settings.FailureMode = FailureReport
	}
	return a
}

// RunGraphSync spawns one ingestion run and reports its outcome.
func (a *Activities) RunGraphSync(ctx context.Context, req graphsync.Request) (*graphsync.Result, error) {
	log := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)
	log.Info("Graph sync reached execution stage",
		"workflow_id", info.WorkflowExecution.ID,
		"attempt", info.Attempt,
		"command", a.opts.Command,
	)
	start := time.Now()

	if err := a.preflight(); err != nil {
		return a.fail(ctx, graphsync.KindConfig, err, -1, time.Since(start))
	}
	runCtx, hb := a.startHeartbeat(ctx, start)
	defer hb.stop()
	if a.locks != nil {
		lock, err := cache.AcquireWithRetry(
			runCtx, a.locks, a.settings.LockKey,
			a.settings.LockTTL, a.settings.LockWait, a.settings.LockRetry,
		)
		if err != nil {
			if ctx.Err() != nil {
				return a.fail(ctx, graphsync.KindCanceled, context.Cause(ctx), -1, time.Since(start))
			}
			return a.fail(ctx, graphsync.KindLock, fmt.Errorf("graph store is busy: %w", err), -1, time.Since(start))
		}
		defer func() {
			// ctx may already be canceled; release must still reach Redis.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				log.Warn("Failed to release graph store lock", "error", err)
			}
		}()
		hb.attach(lock)
	}

	outcome, err := a.runner.Run(runCtx, &process.Invocation{
		Command:     a.opts.Command,
		Args:        a.opts.Args(req),
		Dir:         a.opts.WorkDir,
		GracePeriod: a.settings.GracePeriod,
		MaxOutput:   a.settings.MaxOutput,
	})
	lost := context.Cause(runCtx)
	hb.stop()

	if errors.Is(lost, errLockLost) {
		code := -1
		if outcome != nil {
			code = outcome.ExitCode
		}
		return a.fail(ctx, graphsync.KindLock, lost, code, time.Since(start))
	}
	if err != nil {
		kind, code := classify(err, outcome)
		return a.fail(ctx, kind, err, code, time.Since(start))
	}
	log.Info("Graph sync completed",
		"exit_code", outcome.ExitCode,
		"duration_ms", outcome.Duration.Milliseconds(),
	)
	return graphsync.Succeeded(outcome.ExitCode, time.Since(start)), nil
}

// preflight validates options and the password variable at invocation time.
// Only the variable name is ever reported.
func (a *Activities) preflight() error {
	if err := a.opts.Validate(a.fs); err != nil {
		return err
	}
	if _, ok := os.LookupEnv(a.opts.PasswordEnvVar); !ok {
		return fmt.Errorf("environment variable %s is not set", a.opts.PasswordEnvVar)
	}
	return nil
}

func classify(err error, outcome *process.Outcome) (graphsync.ErrorKind, int) {
	code := -1
	if outcome != nil {
		code = outcome.ExitCode
	}
	var perr *process.ProcessError
	if errors.As(err, &perr) {
		code = perr.ExitCode
	}
	switch {
	case errors.Is(err, process.ErrCanceled):
		return graphsync.KindCanceled, code
	case errors.Is(err, process.ErrNonZeroExit):
		return graphsync.KindExit, code
	default:
		return graphsync.KindSpawn, code
	}
}

func (a *Activities) fail(
	ctx context.Context,
	kind graphsync.ErrorKind,
	err error,
	exitCode int,
	duration time.Duration,
) (*graphsync.Result, error) {
	msg := core.RedactError(err)
	activity.GetLogger(ctx).Error("Graph sync failed",
		"kind", kind,
		"exit_code", exitCode,
		"error", msg,
	)
	result := graphsync.Failed(kind, msg, exitCode, duration)
	if a.settings.FailureMode != FailurePropagate {
		return result, nil
	}
	if kind == graphsync.KindCanceled {
		return nil, temporal.NewCanceledError(result)
	}
	if kind.Retryable() {
		return nil, temporal.NewApplicationError(msg, string(kind), result)
	}
	return nil, temporal.NewNonRetryableApplicationError(msg, string(kind), err, result)
}
