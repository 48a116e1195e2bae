package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const hnAlgoliaBaseURL = "https://hn.algolia.com/api/v1"

// timeRangeSeconds maps the configurable lookback windows to seconds.
var timeRangeSeconds = map[string]int64{
	"day":   86400,
	"week":  604800,
	"month": 2592000,
	"year":  31536000,
}

// HNAlgolia adapts the Algolia Hacker News search API: one query call
// with server-side tag, score and recency filters.
type HNAlgolia struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// NewHNAlgolia creates an Algolia search connector.
func NewHNAlgolia() *HNAlgolia {
	return &HNAlgolia{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: hnAlgoliaBaseURL,
		now:     time.Now,
	}
}

func (h *HNAlgolia) Source() string { return "hn_algolia" }

func (h *HNAlgolia) Fetch(ctx context.Context, cfg FeedConfig) FetchResult {
	if cfg.Query == "" {
		return failure(h.Source(), "query required for feed %s", cfg.ID)
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	params := url.Values{}
	params.Set("query", cfg.Query)
	params.Set("hitsPerPage", strconv.Itoa(limit))
	if cfg.Tags != "" {
		params.Set("tags", cfg.Tags)
	}

	var filters []string
	if cutoff, ok := timeRangeSeconds[cfg.TimeRange]; ok {
		filters = append(filters, fmt.Sprintf("created_at_i>%d", h.now().Unix()-cutoff))
	}
	if cfg.MinScore > 0 {
		filters = append(filters, fmt.Sprintf("points>=%d", cfg.MinScore))
	}
	if len(filters) > 0 {
		params.Set("numericFilters", strings.Join(filters, ","))
	}

	// search ranks by relevance/popularity; search_by_date by recency.
	endpoint := "/search"
	if cfg.TimeRange != "" || cfg.SortBy == "date" {
		endpoint = "/search_by_date"
	}

	reqURL := h.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return failure(h.Source(), "create request: %v", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return failure(h.Source(), "search %q: %v", cfg.Query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(h.Source(), "search %q: status %d", cfg.Query, resp.StatusCode)
	}

	var body struct {
		Hits []json.RawMessage `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return failure(h.Source(), "decode %q: %v", cfg.Query, err)
	}

	return success(h.Source(), body.Hits)
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"` // ISO-8601
}

func (h *HNAlgolia) Normalize(cfg FeedConfig, raw []json.RawMessage) []Story {
	retrieved := time.Now().UTC()

	var stories []Story
	for _, item := range raw {
		var hit algoliaHit
		if err := json.Unmarshal(item, &hit); err != nil {
			continue
		}
		if hit.ObjectID == "" {
			continue
		}

		var posted time.Time
		if t, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
			posted = t.UTC()
		}

		url := hit.URL
		if url == "" {
			url = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}

		// Same id namespace as hn_firebase: both speak for the same
		// origin, so the same story dedupes across the two connectors.
		stories = append(stories, Story{
			ID:          "hn:" + hit.ObjectID,
			Title:       hit.Title,
			URL:         url,
			Score:       hit.Points,
			Comments:    hit.NumComments,
			Author:      hit.Author,
			PostedAt:    posted,
			Source:      h.Source(),
			FeedID:      cfg.ID,
			RetrievedAt: retrieved,
		})
	}

	return stories
}
