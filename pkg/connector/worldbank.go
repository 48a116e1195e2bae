package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const worldBankBaseURL = "https://api.worldbank.org/v2"

// WorldBank adapts the World Bank indicators API. Observations are
// annual; dates arrive as bare years.
type WorldBank struct {
	client  *http.Client
	baseURL string
}

// NewWorldBank creates a World Bank connector. No credentials are
// required.
func NewWorldBank() *WorldBank {
	return &WorldBank{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: worldBankBaseURL,
	}
}

func (w *WorldBank) Source() string { return "worldbank" }

func (w *WorldBank) Fetch(ctx context.Context, cfg MetricConfig) FetchResult {
	if cfg.Indicator == "" || cfg.Country == "" {
		return failure(w.Source(), "indicator and country required for metric %s", cfg.ID)
	}

	reqURL := fmt.Sprintf("%s/country/%s/indicator/%s?format=json&per_page=60",
		w.baseURL, cfg.Country, cfg.Indicator)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return failure(w.Source(), "create request: %v", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return failure(w.Source(), "fetch %s/%s: %v", cfg.Country, cfg.Indicator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(w.Source(), "fetch %s/%s: status %d", cfg.Country, cfg.Indicator, resp.StatusCode)
	}

	// Responses are a two-element envelope: [pagination, entries].
	var envelope []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return failure(w.Source(), "decode %s/%s: %v", cfg.Country, cfg.Indicator, err)
	}
	if len(envelope) < 2 {
		return failure(w.Source(), "fetch %s/%s: unexpected envelope", cfg.Country, cfg.Indicator)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(envelope[1], &entries); err != nil {
		return failure(w.Source(), "decode %s/%s entries: %v", cfg.Country, cfg.Indicator, err)
	}

	return success(w.Source(), entries)
}

type worldBankEntry struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func (w *WorldBank) Normalize(cfg MetricConfig, raw []json.RawMessage) []Observation {
	retrieved := time.Now().UTC()

	var points []Observation
	for _, item := range raw {
		var entry worldBankEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		// Years with no data yet come back as null values.
		if entry.Value == nil || entry.Date == "" {
			continue
		}
		obsDate := entry.Date
		if len(obsDate) == 4 {
			obsDate += "-01-01"
		}
		points = append(points, Observation{
			MetricID:    cfg.ID,
			ObsDate:     obsDate,
			Value:       *entry.Value,
			Unit:        cfg.Unit,
			Source:      w.Source(),
			RetrievedAt: retrieved,
		})
	}

	return applyAdjustments(cfg, points)
}
