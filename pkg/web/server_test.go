package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/p25-nexus/pkg/config"
)

func TestServer_Disabled(t *testing.T) {
	srv := NewServer(config.WebConfig{Enabled: false}, Sources{}, quietLogger())
	assert.NoError(t, srv.Start(context.Background()))
	assert.Empty(t, srv.GetAddr())
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.WebConfig{Enabled: true, Host: "127.0.0.1", Port: 0, History: 10}
	srv := NewServer(cfg, Sources{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.GetAddr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.GetAddr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "p25-nexus", health["service"])

	cancel()
	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ObserveFeedsHistory(t *testing.T) {
	srv := NewServer(config.WebConfig{History: 5}, Sources{}, quietLogger())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.Observe(tduEvent("a", "cc1", at))
	srv.Observe(tduEvent("b", "cc1", at.Add(time.Second)))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0]["id"])
}

func TestServer_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>index</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	srv := NewServer(config.WebConfig{StaticDir: dir, History: 1}, Sources{}, quietLogger())
	routes := srv.Routes()

	tests := []struct {
		path string
		want string
	}{
		{"/", "<html>index</html>"},
		{"/app.js", "console.log(1)"},
		{"/calls/live", "<html>index</html>"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Equal(t, tt.want, rec.Body.String(), tt.path)
	}
}
