package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/compozy/graphsync/engine/infra/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Data struct {
		Status    string `json:"status"`
		Ready     bool   `json:"ready"`
		Role      string `json:"role"`
		TaskQueue string `json:"task_queue"`
	} `json:"data"`
}

func newTestServer(t *testing.T, enabled bool) *OpsServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	monitor, err := monitoring.NewMonitoringService(t.Context(), &monitoring.Config{
		Enabled: enabled,
		Addr:    "127.0.0.1:0",
		Path:    "/metrics",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = monitor.Shutdown(context.WithoutCancel(t.Context())) })
	return NewOpsServer(t.Context(), monitor, Info{Role: "activity", TaskQueue: "activity-queue"})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func TestOpsServer_Health(t *testing.T) {
	t.Run("Should report not ready before the worker starts", func(t *testing.T) {
		s := newTestServer(t, true)
		w := get(t, s.Handler(), "/health")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
	t.Run("Should report role and queue once ready", func(t *testing.T) {
		s := newTestServer(t, true)
		s.SetReady(true)
		w := get(t, s.Handler(), "/health")
		require.Equal(t, http.StatusOK, w.Code)
		var body healthBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Data.Status)
		assert.Equal(t, "activity", body.Data.Role)
		assert.Equal(t, "activity-queue", body.Data.TaskQueue)
	})
}

func TestOpsServer_Metrics(t *testing.T) {
	t.Run("Should serve Prometheus exposition including http metrics", func(t *testing.T) {
		s := newTestServer(t, true)
		get(t, s.Handler(), "/health")
		w := get(t, s.Handler(), "/metrics")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "graphsync_http_requests_total")
	})
	t.Run("Should return 503 when monitoring is disabled", func(t *testing.T) {
		s := newTestServer(t, false)
		w := get(t, s.Handler(), "/metrics")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestOpsServer_Serve(t *testing.T) {
	t.Run("Should serve until the context is canceled", func(t *testing.T) {
		s := newTestServer(t, true)
		s.SetReady(true)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})
}
