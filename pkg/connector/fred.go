package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const fredBaseURL = "https://api.stlouisfed.org/fred"

// FRED adapts the St. Louis Fed FRED observations API.
type FRED struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewFRED creates a FRED connector. The API key is required at fetch
// time, not construction time, so a missing key degrades to a failed
// outcome instead of breaking startup.
func NewFRED(apiKey string) *FRED {
	return &FRED{
		client:  &http.Client{Timeout: 15 * time.Second},
		apiKey:  apiKey,
		baseURL: fredBaseURL,
	}
}

func (f *FRED) Source() string { return "fred" }

func (f *FRED) Fetch(ctx context.Context, cfg MetricConfig) FetchResult {
	if f.apiKey == "" {
		return failure(f.Source(), "api key not configured (set FRED_API_KEY)")
	}
	if cfg.SeriesID == "" {
		return failure(f.Source(), "series_id required for metric %s", cfg.ID)
	}

	params := url.Values{}
	params.Set("series_id", cfg.SeriesID)
	params.Set("api_key", f.apiKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", "120")

	reqURL := f.baseURL + "/series/observations?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return failure(f.Source(), "create request: %v", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return failure(f.Source(), "fetch %s: %v", cfg.SeriesID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(f.Source(), "fetch %s: status %d", cfg.SeriesID, resp.StatusCode)
	}

	var body struct {
		Observations []json.RawMessage `json:"observations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return failure(f.Source(), "decode %s: %v", cfg.SeriesID, err)
	}

	return success(f.Source(), body.Observations)
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func (f *FRED) Normalize(cfg MetricConfig, raw []json.RawMessage) []Observation {
	retrieved := time.Now().UTC()

	var points []Observation
	for _, item := range raw {
		var obs fredObservation
		if err := json.Unmarshal(item, &obs); err != nil {
			continue
		}
		// FRED marks missing observations with a "." value.
		if obs.Value == "." || obs.Value == "" {
			continue
		}
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, Observation{
			MetricID:    cfg.ID,
			ObsDate:     obs.Date,
			Value:       value,
			Unit:        cfg.Unit,
			Source:      f.Source(),
			RetrievedAt: retrieved,
		})
	}

	return applyAdjustments(cfg, points)
}

// HealthCheck verifies the API key is set and the endpoint responds.
func (f *FRED) HealthCheck(ctx context.Context) bool {
	if f.apiKey == "" {
		return false
	}
	reqURL := fmt.Sprintf("%s/releases?api_key=%s&file_type=json&limit=1", f.baseURL, url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
