package embedded

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/graphsync/activities"
	"github.com/compozy/graphsync/engine/process"
	"github.com/compozy/graphsync/engine/worker"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var nextPortBlock atomic.Uint32

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

// freeFrontendPort finds a frontend port whose three service ports are free too.
func freeFrontendPort(t *testing.T) int {
	t.Helper()
	for range 256 {
		port := 41000 + int(nextPortBlock.Add(1)%4000)*5
		candidate := &Config{BindIP: "127.0.0.1", FrontendPort: port}
		if ensurePortsFree(t.Context(), candidate) == nil {
			return port
		}
	}
	t.Fatal("no free port block for the dev server")
	return 0
}

func devAppConfig(t *testing.T) *config.Config {
	t.Helper()
	app := config.Default()
	app.Temporal.Namespace = "graphsync-dev-test"
	app.Temporal.WorkflowQueue = "dev-workflows"
	app.Temporal.ActivityQueue = "dev-activities"
	app.Dev.DatabaseFile = filepath.Join(t.TempDir(), "temporal.db")
	app.Dev.FrontendPort = freeFrontendPort(t)
	app.Dev.EnableUI = false
	app.Dev.LogLevel = "error"
	app.Dev.StartTimeout = 20 * time.Second
	app.Worker.ShutdownTimeout = time.Second
	return app
}

func startServer(ctx context.Context, t *testing.T, cfg *Config) (*Server, *Endpoints) {
	t.Helper()
	srv, err := NewServer(ctx, cfg)
	require.NoError(t, err)
	ep, err := srv.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(stopCtx))
	})
	return srv, ep
}

func TestServer_Lifecycle(t *testing.T) {
	t.Run("Should report the configured namespace and queues once ready", func(t *testing.T) {
		ctx := testContext(t)
		app := devAppConfig(t)

		srv, ep := startServer(ctx, t, FromAppConfig(app))

		assert.Equal(t, "graphsync-dev-test", ep.Namespace)
		assert.Equal(t, "dev-workflows", ep.WorkflowQueue)
		assert.Equal(t, "dev-activities", ep.ActivityQueue)
		assert.Empty(t, ep.UIURL)
		conn, err := net.DialTimeout("tcp", ep.FrontendAddr, time.Second)
		require.NoError(t, err)
		_ = conn.Close()
		_, err = srv.Start(ctx)
		assert.ErrorIs(t, err, errAlreadyStarted)
	})
	t.Run("Should treat a second stop as a no-op", func(t *testing.T) {
		ctx := testContext(t)
		srv, err := NewServer(ctx, FromAppConfig(devAppConfig(t)))
		require.NoError(t, err)
		assert.NoError(t, srv.Stop(ctx))
	})
	t.Run("Should refuse a port another process holds", func(t *testing.T) {
		ctx := testContext(t)
		app := devAppConfig(t)
		var lc net.ListenConfig
		held, err := lc.Listen(ctx, "tcp", hostPort("127.0.0.1", app.Dev.FrontendPort+2))
		require.NoError(t, err)
		t.Cleanup(func() { _ = held.Close() })

		_, err = NewServer(ctx, FromAppConfig(app))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "is unavailable")
	})
	t.Run("Should reject an invalid configuration before touching storage", func(t *testing.T) {
		app := devAppConfig(t)
		app.Dev.LogLevel = "loud"
		_, err := NewServer(testContext(t), FromAppConfig(app))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid dev server config")
	})
}

type recordingRunner struct {
	mu   sync.Mutex
	args [][]string
}

func (r *recordingRunner) Run(_ context.Context, inv *process.Invocation) (*process.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = append(r.args, inv.Args)
	return &process.Outcome{ExitCode: 0, Duration: time.Millisecond}, nil
}

func (r *recordingRunner) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args
}

func TestServer_GraphSync(t *testing.T) {
	t.Run("Should run a sync end to end on the queues the server reports", func(t *testing.T) {
		t.Setenv("NEO4J_PASSWORD", "s3cret")
		ctx := testContext(t)
		app := devAppConfig(t)
		_, ep := startServer(ctx, t, FromAppConfig(app))
		cfg := ep.Apply(app)

		client, err := worker.NewClient(ctx, &cfg.Temporal)
		require.NoError(t, err)
		t.Cleanup(client.Close)
		opts, err := graphsync.OptionsFromConfig(&cfg.Sync)
		require.NoError(t, err)
		runner := &recordingRunner{}
		acts := activities.NewActivities(opts, runner, activities.SettingsFromConfig(cfg),
			activities.WithFs(afero.NewMemMapFs()))

		runCtx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error { return worker.NewActivityWorker(client, cfg, acts).Run(gctx) })
		g.Go(func() error { return worker.NewWorkflowWorker(client, cfg, graphsync.NewDefinition(cfg)).Run(gctx) })
		t.Cleanup(func() {
			cancel()
			assert.NoError(t, g.Wait())
		})

		triggerCtx, stop := context.WithTimeout(ctx, 30*time.Second)
		defer stop()
		exec, err := worker.NewTrigger(client, cfg.Temporal.WorkflowQueue).
			Run(triggerCtx, graphsync.Request{UpdateTag: 7})

		require.NoError(t, err)
		require.NotNil(t, exec.Result)
		assert.Equal(t, "{ result: '0' }", exec.Result.String())
		calls := runner.calls()
		require.Len(t, calls, 1)
		assert.Contains(t, strings.Join(calls[0], " "), "--update-tag 7")
	})
}
