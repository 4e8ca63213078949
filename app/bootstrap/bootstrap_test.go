package bootstrap

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktree-go/app/config"
	"tasktree-go/app/services"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	logger, err = NewLogger(&buf, config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	logger.Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")

	_, err = NewLogger(io.Discard, config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
	_, err = NewLogger(io.Discard, config.LogConfig{Level: "chatty", Format: "json"})
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory

	svc, cleanup, err := Open(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	tasks, err := svc.ListSubtree(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsRoot())
}

func TestOpenSQLitePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "tasks.db")

	svc, cleanup, err := Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	task, err := svc.CreateTask(ctx, services.CreateTaskRequest{Title: "survive restart"})
	require.NoError(t, err)
	rootID := svc.RootID()
	cleanup()

	svc, cleanup, err = Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, rootID, svc.RootID())
	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "survive restart", got.Title)
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "redis"
	_, _, err := Open(context.Background(), cfg, quietLogger())
	assert.ErrorContains(t, err, "unknown backend")
}

func TestServeHTTPShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeHTTP(ctx, listener, handler, quietLogger()) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
