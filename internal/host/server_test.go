package host

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cryguy/jshandler/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const echoScript = `function process(req, res) {
	if (req.args === "missing") return 404;
	if (req.args === "fail") throw new Error("boom");
	if (req.args === "empty") return 204;
	res.contentType = "text/plain";
	res.write(req.method + " " + req.uri + "?" + req.args + " " + req.userAgent);
	return 200;
}`

func newTestServer(t *testing.T, locations ...Location) *Server {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "echo.js")
	require.NoError(t, os.WriteFile(script, []byte(echoScript), 0o644))
	if len(locations) == 0 {
		locations = []Location{{Path: "/app"}}
	}
	for i := range locations {
		if locations[i].Script == "" {
			locations[i].Script = script
		}
	}
	s, err := NewServer(Config{Locations: locations}, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "UA1")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_RoutesToLocation(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	resp, body := get(t, ts, "/app/x?a=1")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "GET /app/x?a=1 UA1", body)

	resp, body = get(t, ts, "/app")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "GET /app? UA1", body)

	resp, _ = get(t, ts, "/other")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestServer_StatusPaths(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	resp, body := get(t, ts, "/app/x?missing")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, core.DefaultContentType, resp.Header.Get("Content-Type"))

	resp, body = get(t, ts, "/app/x?fail")
	assert.Equal(t, 500, resp.StatusCode)
	assert.Empty(t, body)

	resp, _ = get(t, ts, "/app/x?empty")
	assert.Equal(t, 204, resp.StatusCode)
}

func TestServer_RootLocation(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, Location{Path: "/"}).Handler())
	defer ts.Close()

	_, body := get(t, ts, "/deep/path")
	assert.Equal(t, "GET /deep/path? UA1", body)
}

func TestServer_Metrics(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, Location{Path: "/metered"}).Handler())
	defer ts.Close()

	get(t, ts, "/metered/x?a=1")
	get(t, ts, "/metered/x?missing")

	_, body := get(t, ts, "/metrics")
	assert.Contains(t, body, `jshandler_requests_total{code="200",location="/metered"}`)
	assert.Contains(t, body, `jshandler_deferred_responses_total{location="/metered"} 1`)
}

func TestServer_BadLocationFailsConstruction(t *testing.T) {
	_, err := NewServer(Config{Locations: []Location{{Path: "/x", Script: "/does/not/exist.js"}}}, nil, nil)
	var ce *core.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "read", ce.Op)
}

func TestServer_StartAndShutdown(t *testing.T) {
	t.Setenv(EnvListen, "127.0.0.1:0")
	s := newTestServer(t)
	s.cfg.MaxConnections = 4
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.Addr().String() + "/app/live")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "GET /app/live? Go-http-client/1.1", string(body))

	require.NoError(t, s.Shutdown(context.Background()))
}
