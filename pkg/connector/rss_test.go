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

const rssXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Example Blog</title>
    <item>
      <title>First Post</title>
      <link>https://example.com/p/first</link>
      <dc:creator>Jane</dc:creator>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
      <guid>post-1</guid>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/p/second</link>
      <pubDate>Tue, 02 Jan 2024 12:00:00 +0000</pubDate>
      <guid>post-2</guid>
    </item>
  </channel>
</rss>`

func TestRSSFetchAndNormalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssXML)
	}))
	defer srv.Close()

	rss := NewRSS()
	cfg := FeedConfig{ID: "blog", Source: "rss", Endpoint: srv.URL, Limit: 10}

	result := rss.Fetch(context.Background(), cfg)
	require.True(t, result.Success, result.Err)
	require.Len(t, result.Items, 2)

	stories := rss.Normalize(cfg, result.Items)
	require.Len(t, stories, 2)
	assert.Equal(t, "rss:blog:post-1", stories[0].ID)
	assert.Equal(t, "First Post", stories[0].Title)
	assert.Equal(t, "https://example.com/p/first", stories[0].URL)
	assert.Equal(t, "Jane", stories[0].Author)
	assert.Equal(t, 2024, stories[0].PostedAt.Year())
	assert.Zero(t, stories[0].Score)
	assert.Equal(t, "blog", stories[0].FeedID)
}

func TestRSSLimitTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssXML)
	}))
	defer srv.Close()

	rss := NewRSS()
	result := rss.Fetch(context.Background(), FeedConfig{ID: "blog", Endpoint: srv.URL, Limit: 1})
	require.True(t, result.Success)
	assert.Len(t, result.Items, 1)
}

func TestRSSMissingEndpointIsValidationFailure(t *testing.T) {
	rss := NewRSS()
	result := rss.Fetch(context.Background(), FeedConfig{ID: "blog"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "endpoint")
}

func TestRSSMalformedFeedIsFailedOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "definitely not xml {")
	}))
	defer srv.Close()

	rss := NewRSS()
	result := rss.Fetch(context.Background(), FeedConfig{ID: "blog", Endpoint: srv.URL})
	assert.False(t, result.Success)
}
