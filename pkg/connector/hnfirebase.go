package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/xiaolong-y/meridian/pkg/fetch"
)

const hnFirebaseBaseURL = "https://hacker-news.firebaseio.com/v0"

const defaultFeedLimit = 20

// HNFirebase adapts the official Hacker News API. The API is
// index-then-detail: one call returns an ordered id list, then every
// story needs its own lookup, done through pkg/fetch with bounded
// concurrency. A story that fails to resolve is dropped from the
// batch, not an error.
type HNFirebase struct {
	client      *http.Client
	baseURL     string
	concurrency int
	limiter     *rate.Limiter
}

// NewHNFirebase creates a Hacker News connector. Item lookups are paced
// at 20/s across workers; the API is unauthenticated and shared.
func NewHNFirebase() *HNFirebase {
	return &HNFirebase{
		client:      &http.Client{Timeout: 15 * time.Second},
		baseURL:     hnFirebaseBaseURL,
		concurrency: 10,
		limiter:     rate.NewLimiter(rate.Limit(20), 10),
	}
}

func (h *HNFirebase) Source() string { return "hn_firebase" }

func (h *HNFirebase) Fetch(ctx context.Context, cfg FeedConfig) FetchResult {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "topstories"
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	ids, err := h.fetchIndex(ctx, endpoint)
	if err != nil {
		return failure(h.Source(), "%v", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	items := fetch.Map(ctx, ids, fetch.Options{Concurrency: h.concurrency, Limiter: h.limiter},
		func(ctx context.Context, id int64) (json.RawMessage, error) {
			return h.fetchItem(ctx, id)
		})

	// All ids failing to resolve is still a successful, empty batch.
	return success(h.Source(), items)
}

func (h *HNFirebase) fetchIndex(ctx context.Context, endpoint string) ([]int64, error) {
	reqURL := fmt.Sprintf("%s/%s.json", h.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}

	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return ids, nil
}

func (h *HNFirebase) fetchItem(ctx context.Context, id int64) (json.RawMessage, error) {
	reqURL := fmt.Sprintf("%s/item/%d.json", h.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create item request %d: %w", id, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch item %d: status %d", id, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read item %d: %w", id, err)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode item %d: %w", id, err)
	}
	if probe.Type != "story" {
		return nil, fmt.Errorf("item %d is a %s, not a story", id, probe.Type)
	}

	return json.RawMessage(body), nil
}

type hnItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Time        int64  `json:"time"` // unix epoch seconds
	Descendants int    `json:"descendants"`
}

func (h *HNFirebase) Normalize(cfg FeedConfig, raw []json.RawMessage) []Story {
	retrieved := time.Now().UTC()

	var stories []Story
	for _, item := range raw {
		var story hnItem
		if err := json.Unmarshal(item, &story); err != nil {
			continue
		}
		if story.ID == 0 {
			continue
		}
		url := story.URL
		if url == "" {
			url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		}
		stories = append(stories, Story{
			ID:          fmt.Sprintf("hn:%d", story.ID),
			Title:       story.Title,
			URL:         url,
			Score:       story.Score,
			Comments:    story.Descendants,
			Author:      story.By,
			PostedAt:    time.Unix(story.Time, 0).UTC(),
			Source:      h.Source(),
			FeedID:      cfg.ID,
			RetrievedAt: retrieved,
		})
	}

	return stories
}

// HealthCheck verifies the story index endpoint responds.
func (h *HNFirebase) HealthCheck(ctx context.Context) bool {
	ids, err := h.fetchIndex(ctx, "topstories")
	return err == nil && len(ids) > 0
}
