package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaolong-y/meridian/internal/config"
	"github.com/xiaolong-y/meridian/internal/store"
	"github.com/xiaolong-y/meridian/pkg/connector"
	"github.com/xiaolong-y/meridian/pkg/render"
)

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{
		Render:  config.RenderConfig{Title: "Meridian"},
		Feeds:   []config.Feed{{ID: "hn_top", Name: "Top", Source: "hn_firebase", Limit: 10}},
		Display: config.DisplayConfig{PrimaryFeed: "hn_top"},
	}
	gen, err := render.New(s, cfg)
	require.NoError(t, err)
	return New(s, gen, 8080, zerolog.Nop()), s
}

func seedData(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertObservations(ctx, []connector.Observation{
		{MetricID: "us_cpi", ObsDate: "2024-01-01", Value: 3.1, Unit: "%", Source: "fred", RetrievedAt: time.Now().UTC()},
		{MetricID: "us_cpi", ObsDate: "2024-02-01", Value: 3.4, Unit: "%", Source: "fred", RetrievedAt: time.Now().UTC()},
	}))
	require.NoError(t, s.UpsertMetricSnapshot(ctx, &store.MetricSnapshot{
		ID: "us_cpi", Name: "US CPI", Source: "fred", Unit: "%",
		LastValue: 3.4, LastUpdated: time.Now().UTC(),
	}))
	require.NoError(t, s.UpsertStory(ctx, &connector.Story{
		ID: "hn:1", Title: "A story", URL: "https://example.com", Score: 100,
		Author: "alice", PostedAt: time.Now().UTC(), Source: "hn_firebase",
		FeedID: "hn_top", RetrievedAt: time.Now().UTC(),
	}))
}

func TestHandleMetrics(t *testing.T) {
	srv, s := newTestServer(t)
	seedData(t, s)

	rec := httptest.NewRecorder()
	srv.handleMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Data  []store.MetricSnapshot `json:"data"`
		Count int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "us_cpi", body.Data[0].ID)
}

func TestHandleMetricsRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleMetrics(rec, httptest.NewRequest(http.MethodPost, "/api/v1/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleObservations(t *testing.T) {
	srv, s := newTestServer(t)
	seedData(t, s)

	rec := httptest.NewRecorder()
	srv.handleObservations(rec, httptest.NewRequest(http.MethodGet, "/api/v1/observations?metric=us_cpi&limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data  []connector.Observation `json:"data"`
		Count int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "2024-02-01", body.Data[0].ObsDate)
}

func TestHandleObservationsRequiresMetric(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleObservations(rec, httptest.NewRequest(http.MethodGet, "/api/v1/observations", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStories(t *testing.T) {
	srv, s := newTestServer(t)
	seedData(t, s)

	rec := httptest.NewRecorder()
	srv.handleStories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stories?feed=hn_top", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data  []connector.Story `json:"data"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "hn:1", body.Data[0].ID)
}

func TestHandleStoriesRequiresFeed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleStories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stories", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDashboard(t *testing.T) {
	srv, s := newTestServer(t)
	seedData(t, s)

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "A story")
}

func TestHandleDashboardUnknownPathIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQueryLimit(t *testing.T) {
	assert.Equal(t, 5, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=5", nil), 20))
	assert.Equal(t, 20, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), 20))
	assert.Equal(t, 20, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=-2", nil), 20))
	assert.Equal(t, 20, queryLimit(httptest.NewRequest(http.MethodGet, "/", nil), 20))
	assert.Equal(t, 500, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=1000000000", nil), 20))
	assert.Equal(t, 500, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=501", nil), 20))
}
