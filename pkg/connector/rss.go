package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSS adapts any RSS/Atom feed to the story shape. Entries have no
// vote counts, so scores stay zero and the read side falls back to
// storage order.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewRSS creates an RSS/Atom connector.
func NewRSS() *RSS {
	return &RSS{
		client: &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
	}
}

func (r *RSS) Source() string { return "rss" }

func (r *RSS) Fetch(ctx context.Context, cfg FeedConfig) FetchResult {
	if cfg.Endpoint == "" {
		return failure(r.Source(), "endpoint URL required for feed %s", cfg.ID)
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint, nil)
	if err != nil {
		return failure(r.Source(), "create request: %v", err)
	}
	req.Header.Set("User-Agent", "meridian/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return failure(r.Source(), "fetch %s: %v", cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(r.Source(), "fetch %s: status %d", cfg.Endpoint, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return failure(r.Source(), "parse %s: %v", cfg.Endpoint, err)
	}

	entries := parsed.Items
	if len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		items = append(items, data)
	}

	return success(r.Source(), items)
}

func (r *RSS) Normalize(cfg FeedConfig, raw []json.RawMessage) []Story {
	retrieved := time.Now().UTC()

	var stories []Story
	for _, item := range raw {
		var entry gofeed.Item
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}
		if id == "" {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		var posted time.Time
		if entry.PublishedParsed != nil {
			posted = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			posted = entry.UpdatedParsed.UTC()
		}

		stories = append(stories, Story{
			ID:          fmt.Sprintf("rss:%s:%s", cfg.ID, id),
			Title:       entry.Title,
			URL:         link,
			Author:      author,
			PostedAt:    posted,
			Source:      r.Source(),
			FeedID:      cfg.ID,
			RetrievedAt: retrieved,
		})
	}

	return stories
}
