package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
	"github.com/Phil-Holland/notes-serve/internal/searcher/handler"
	"github.com/Phil-Holland/notes-serve/pkg/config"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
)

func newTestServer(t *testing.T, m *metrics.Metrics) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	htmlDir := filepath.Join(dir, "html")
	staticDir := filepath.Join(dir, "static")
	require.NoError(t, os.MkdirAll(htmlDir, 0o755))
	require.NoError(t, os.MkdirAll(staticDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(htmlDir, "rocket.html"), []byte("<h1>Rocket</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>search page</html>"), 0o644))

	idx, err := indexer.Build(context.Background(), []indexer.Document{
		{File: "rocket.html", Title: "Rocket launch", Tags: []string{"space"}, Content: "the rocket left the pad"},
		{File: "garden.html", Title: "Garden", Tags: []string{"home"}, Content: "tomato plants need water"},
	}, filepath.Join(dir, "index"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	cfg := config.Default()
	cfg.Notes.HTMLDir = htmlDir
	cfg.Notes.StaticDir = staticDir
	cfg.Server.RequestTimeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	s, err := New(ctx, cfg, idx, m)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		s.Close()
	})
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestPostSearch(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(`{"search_term":"rocket"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body handler.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Responses, 1)
	assert.Equal(t, "rocket.html", body.Responses[0].File)
	assert.Equal(t, []string{"space"}, body.Responses[0].Tags)
}

func TestAPISearchInvalid(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/api/v1/search?q=%28rocket")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"valid":false`)
	assert.Contains(t, body, `"responses":[]`)
}

func TestServesNotesAndFrontEnd(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/notes/rocket.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Rocket</h1>", body)

	resp, _ = get(t, ts.URL+"/notes/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "search page")

	resp, _ = get(t, ts.URL+"/favicon.ico")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndCacheDisabled(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "2 documents, built ")

	resp, body = get(t, ts.URL+"/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"disabled"}`, body)

	resp, err := http.Post(ts.URL+"/api/v1/cache/invalidate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAnalyticsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	for range 3 {
		resp, _ := get(t, ts.URL+"/api/v1/search?q=rocket")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Eventually(t, func() bool {
		_, body := get(t, ts.URL+"/api/v1/analytics")
		return strings.Contains(body, `"total_searches":3`)
	}, time.Second, 10*time.Millisecond)
}

func TestRecordsRequestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ts := newTestServer(t, m)

	get(t, ts.URL+"/api/v1/search?q=rocket")
	get(t, ts.URL+"/notes/rocket.html")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/notes/*", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(metrics.ResultHit)))
}
