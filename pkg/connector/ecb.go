package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const ecbBaseURL = "https://data-api.ecb.europa.eu/service"

// ECB adapts the ECB SDMX-JSON data API. One fetch returns a single
// document covering the whole series; the raw item list is that one
// document.
type ECB struct {
	client  *http.Client
	baseURL string
}

// NewECB creates an ECB connector. No credentials are required.
func NewECB() *ECB {
	return &ECB{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: ecbBaseURL,
	}
}

func (e *ECB) Source() string { return "ecb" }

func (e *ECB) Fetch(ctx context.Context, cfg MetricConfig) FetchResult {
	if cfg.Dataflow == "" || cfg.SeriesKey == "" {
		return failure(e.Source(), "dataflow and series_key required for metric %s", cfg.ID)
	}

	reqURL := fmt.Sprintf("%s/data/%s/%s?format=jsondata&lastNObservations=24&detail=dataonly",
		e.baseURL, cfg.Dataflow, cfg.SeriesKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return failure(e.Source(), "create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return failure(e.Source(), "fetch %s/%s: %v", cfg.Dataflow, cfg.SeriesKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(e.Source(), "fetch %s/%s: status %d", cfg.Dataflow, cfg.SeriesKey, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(e.Source(), "read %s/%s: %v", cfg.Dataflow, cfg.SeriesKey, err)
	}
	if !json.Valid(body) {
		return failure(e.Source(), "fetch %s/%s: malformed body", cfg.Dataflow, cfg.SeriesKey)
	}

	return success(e.Source(), []json.RawMessage{body})
}

// ecbPayload is the subset of the SDMX-JSON structure needed to pull
// observations and their period labels.
type ecbPayload struct {
	DataSets []struct {
		Series map[string]struct {
			Observations map[string][]json.Number `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
	Structure struct {
		Dimensions struct {
			Observation []struct {
				Values []struct {
					ID string `json:"id"`
				} `json:"values"`
			} `json:"observation"`
		} `json:"dimensions"`
	} `json:"structure"`
}

func (e *ECB) Normalize(cfg MetricConfig, raw []json.RawMessage) []Observation {
	retrieved := time.Now().UTC()

	var points []Observation
	for _, doc := range raw {
		var payload ecbPayload
		if err := json.Unmarshal(doc, &payload); err != nil {
			continue
		}
		if len(payload.DataSets) == 0 || len(payload.Structure.Dimensions.Observation) == 0 {
			continue
		}
		periods := payload.Structure.Dimensions.Observation[0].Values

		for _, series := range payload.DataSets[0].Series {
			for idx, values := range series.Observations {
				i, err := strconv.Atoi(idx)
				if err != nil || i < 0 || i >= len(periods) || len(values) == 0 {
					continue
				}
				value, err := values[0].Float64()
				if err != nil {
					continue
				}
				points = append(points, Observation{
					MetricID:    cfg.ID,
					ObsDate:     normalizePeriod(periods[i].ID),
					Value:       value,
					Unit:        cfg.Unit,
					Source:      e.Source(),
					RetrievedAt: retrieved,
				})
			}
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].ObsDate > points[j].ObsDate })
	return applyAdjustments(cfg, points)
}

// normalizePeriod converts SDMX period ids to first-of-period
// YYYY-MM-DD dates: "2024" -> 2024-01-01, "2024-03" -> 2024-03-01,
// "2024-Q2" -> 2024-04-01. Daily ids pass through unchanged.
func normalizePeriod(period string) string {
	switch len(period) {
	case 4: // annual
		return period + "-01-01"
	case 7:
		if period[5] == 'Q' {
			quarter := int(period[6] - '0')
			if quarter < 1 || quarter > 4 {
				return period
			}
			return fmt.Sprintf("%s-%02d-01", period[:4], (quarter-1)*3+1)
		}
		return period + "-01" // monthly
	default:
		return period
	}
}
