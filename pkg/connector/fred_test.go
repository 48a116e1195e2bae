package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fredResponse = `{
	"observations": [
		{"date": "2024-02-01", "value": "310.326"},
		{"date": "2024-01-01", "value": "309.685"},
		{"date": "2023-12-01", "value": "."},
		{"date": "2023-11-01", "value": "307.917"}
	]
}`

func TestFREDFetchAndNormalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		assert.Equal(t, "CPIAUCSL", r.URL.Query().Get("series_id"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, fredResponse)
	}))
	defer srv.Close()

	f := NewFRED("test-key")
	f.baseURL = srv.URL
	cfg := MetricConfig{ID: "us_cpi", Source: "fred", Unit: "index", SeriesID: "CPIAUCSL"}

	result := f.Fetch(context.Background(), cfg)
	require.True(t, result.Success, result.Err)
	require.Len(t, result.Items, 4)

	points := f.Normalize(cfg, result.Items)
	// The "." sentinel row is skipped, not an error.
	require.Len(t, points, 3)
	assert.Equal(t, "2024-02-01", points[0].ObsDate)
	assert.InDelta(t, 310.326, points[0].Value, 1e-9)
	assert.Equal(t, "us_cpi", points[0].MetricID)
	assert.Equal(t, "fred", points[0].Source)
	assert.Equal(t, "index", points[0].Unit)
}

func TestFREDMissingAPIKeyIsValidationFailure(t *testing.T) {
	f := NewFRED("")
	result := f.Fetch(context.Background(), MetricConfig{ID: "m", SeriesID: "X"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "api key")
}

func TestFREDMissingSeriesIDIsValidationFailure(t *testing.T) {
	f := NewFRED("key")
	result := f.Fetch(context.Background(), MetricConfig{ID: "m"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "series_id")
}

func TestFREDNon200IsFailedOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFRED("key")
	f.baseURL = srv.URL
	result := f.Fetch(context.Background(), MetricConfig{ID: "m", SeriesID: "X"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "status 502")
}

func TestFREDMultiplierAndYoYTransform(t *testing.T) {
	cfg := MetricConfig{ID: "m", Frequency: "monthly", Transform: "pct_change_yoy"}

	var raw []string
	// 14 months of data growing 1 point per month from 100.
	for i := 0; i < 14; i++ {
		raw = append(raw, fmt.Sprintf(`{"date": "%s", "value": "%d"}`, monthDate(2024, 2-i), 113-i))
	}
	items := rawMessages(raw)

	f := NewFRED("key")
	points := f.Normalize(cfg, items)
	require.Len(t, points, 2) // 14 months minus the 12-month lag
	assert.Equal(t, "2024-02-01", points[0].ObsDate)
	assert.InDelta(t, (113.0/101.0-1)*100, points[0].Value, 1e-9)
}

func TestFetchObservationsWrapsFailureAsError(t *testing.T) {
	f := NewFRED("")
	_, err := FetchObservations(context.Background(), f, MetricConfig{ID: "m"})
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "fred", fe.Source)
}
