package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MetricConfig describes one tracked economic series. The trailing
// fields are source-specific and ignored by connectors they do not
// apply to.
type MetricConfig struct {
	ID         string
	Name       string
	Source     string
	Frequency  string // "daily", "monthly", "quarterly", "annual"
	Unit       string
	Decimals   int
	Transform  string // "" or "pct_change_yoy"
	Multiplier float64

	SeriesID  string // fred
	Dataflow  string // ecb
	SeriesKey string // ecb
	Indicator string // worldbank
	Country   string // worldbank
}

// FeedConfig describes one tracked discussion feed. The trailing
// fields are source-specific and ignored by connectors they do not
// apply to.
type FeedConfig struct {
	ID     string
	Name   string
	Source string
	Limit  int

	Endpoint  string // hn_firebase story list, or rss feed URL
	Query     string // hn_algolia
	Tags      string // hn_algolia
	TimeRange string // hn_algolia: "day", "week", "month", "year"
	MinScore  int    // hn_algolia
	SortBy    string // hn_algolia: "popularity" or "date"
}

// Observation is one normalized time-series point. A point is
// identified by (MetricID, ObsDate, Source); re-ingesting the same
// date from the same source overwrites the value, never duplicates.
type Observation struct {
	MetricID    string    `db:"metric_id" json:"metric_id"`
	ObsDate     string    `db:"obs_date" json:"obs_date"` // YYYY-MM-DD
	Value       float64   `db:"value" json:"value"`
	Unit        string    `db:"unit" json:"unit"`
	Source      string    `db:"source" json:"source"`
	RetrievedAt time.Time `db:"retrieved_at" json:"retrieved_at"`
}

// Story is one normalized feed item. The ID carries an origin prefix
// ("hn:41235", "rss:go_blog:...") so IDs from different origins cannot
// collide in storage.
type Story struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	Score       int       `db:"score" json:"score"`
	Comments    int       `db:"comments" json:"comments"`
	Author      string    `db:"author" json:"author"`
	PostedAt    time.Time `db:"posted_at" json:"posted_at"`
	Source      string    `db:"source" json:"source"`
	FeedID      string    `db:"feed_id" json:"feed_id"`
	RetrievedAt time.Time `db:"retrieved_at" json:"retrieved_at"`
}

// FetchResult is the outcome of one fetch call. It is consumed
// immediately by normalization and never persisted. Expected failures
// (timeouts, non-2xx, missing required config) arrive here as
// Success=false rather than as errors.
type FetchResult struct {
	Success   bool
	Items     []json.RawMessage
	Err       string
	Source    string
	FetchedAt time.Time
}

func success(source string, items []json.RawMessage) FetchResult {
	return FetchResult{
		Success:   true,
		Items:     items,
		Source:    source,
		FetchedAt: time.Now().UTC(),
	}
}

func failure(source, format string, args ...any) FetchResult {
	return FetchResult{
		Err:       fmt.Sprintf(format, args...),
		Source:    source,
		FetchedAt: time.Now().UTC(),
	}
}

// FetchError is returned by FetchObservations / FetchStories when the
// underlying fetch reported failure.
type FetchError struct {
	Source string
	Reason string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %s", e.Source, e.Reason)
}

// MetricConnector adapts one economic time-series source. Normalize is
// a pure transform: a malformed raw item is skipped, never fails the
// batch.
type MetricConnector interface {
	Source() string
	Fetch(ctx context.Context, cfg MetricConfig) FetchResult
	Normalize(cfg MetricConfig, raw []json.RawMessage) []Observation
}

// FeedConnector adapts one discussion-feed source.
type FeedConnector interface {
	Source() string
	Fetch(ctx context.Context, cfg FeedConfig) FetchResult
	Normalize(cfg FeedConfig, raw []json.RawMessage) []Story
}

// HealthChecker is an optional connector capability. Connectors that do
// not implement it are assumed healthy; see Healthy.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Healthy reports connector health, defaulting to true for connectors
// without a HealthCheck of their own.
func Healthy(ctx context.Context, c any) bool {
	if hc, ok := c.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return true
}

// FetchObservations composes fetch and normalize for a metric source.
// A failed fetch becomes a *FetchError.
func FetchObservations(ctx context.Context, c MetricConnector, cfg MetricConfig) ([]Observation, error) {
	result := c.Fetch(ctx, cfg)
	if !result.Success {
		return nil, &FetchError{Source: c.Source(), Reason: result.Err}
	}
	return c.Normalize(cfg, result.Items), nil
}

// FetchStories composes fetch and normalize for a feed source.
func FetchStories(ctx context.Context, c FeedConnector, cfg FeedConfig) ([]Story, error) {
	result := c.Fetch(ctx, cfg)
	if !result.Success {
		return nil, &FetchError{Source: c.Source(), Reason: result.Err}
	}
	return c.Normalize(cfg, result.Items), nil
}

// transformLag maps a series frequency to the number of periods in one
// year, used by the pct_change_yoy transform.
func transformLag(frequency string) int {
	switch frequency {
	case "monthly":
		return 12
	case "quarterly":
		return 4
	case "daily":
		return 0 // yoy not supported for daily series
	default:
		return 1
	}
}

// applyAdjustments applies the config multiplier and optional transform
// to a series. Points must be sorted by ObsDate descending; the
// pct_change_yoy transform drops the trailing lag window it has no
// base values for.
func applyAdjustments(cfg MetricConfig, points []Observation) []Observation {
	sort.Slice(points, func(i, j int) bool { return points[i].ObsDate > points[j].ObsDate })

	if cfg.Multiplier != 0 && cfg.Multiplier != 1 {
		for i := range points {
			points[i].Value *= cfg.Multiplier
		}
	}

	if cfg.Transform == "pct_change_yoy" {
		lag := transformLag(cfg.Frequency)
		if lag == 0 || len(points) <= lag {
			return nil
		}
		out := make([]Observation, 0, len(points)-lag)
		for i := 0; i+lag < len(points); i++ {
			base := points[i+lag].Value
			if base == 0 {
				continue
			}
			p := points[i]
			p.Value = (points[i].Value/base - 1) * 100
			out = append(out, p)
		}
		return out
	}

	return points
}
