package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "./meridian.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.Window())
	assert.Equal(t, time.Hour, cfg.Schedule.ParseIngestInterval())
	assert.Equal(t, time.Hour, cfg.Schedule.ParseRenderInterval())
	assert.NotEmpty(t, cfg.Metrics)
	assert.NotEmpty(t, cfg.Feeds)
	assert.Equal(t, "hn_top", cfg.Display.PrimaryFeed)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Database.Path, cfg.Database.Path)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/meridian/data.db
retention:
  story_days: 14
schedule:
  ingest_interval: 30m
server:
  port: 9090
sources:
  fred:
    api_key: file-key
metrics:
  - id: de_cpi
    name: Germany CPI
    source: ecb
    frequency: monthly
    unit: "%"
    dataflow: ICP
    series_key: M.DE.N.000000.4.ANR
feeds:
  - id: go_blog
    name: Go Blog
    source: rss
    endpoint: https://go.dev/blog/feed.atom
    limit: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/meridian/data.db", cfg.Database.Path)
	assert.Equal(t, 14*24*time.Hour, cfg.Retention.Window())
	assert.Equal(t, 30*time.Minute, cfg.Schedule.ParseIngestInterval())
	// render_interval absent from the file keeps the default.
	assert.Equal(t, time.Hour, cfg.Schedule.ParseRenderInterval())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.Sources.FRED.APIKey)

	require.Len(t, cfg.Metrics, 1)
	assert.Equal(t, "de_cpi", cfg.Metrics[0].ID)
	assert.Equal(t, "M.DE.N.000000.4.ANR", cfg.Metrics[0].SeriesKey)

	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "rss", cfg.Feeds[0].Source)
	assert.Equal(t, "https://go.dev/blog/feed.atom", cfg.Feeds[0].Endpoint)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not: a: mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: ./from-file.db
sources:
  fred:
    api_key: file-key
`), 0o644))

	t.Setenv("MERIDIAN_DB_PATH", "./from-env.db")
	t.Setenv("FRED_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./from-env.db", cfg.Database.Path)
	assert.Equal(t, "env-key", cfg.Sources.FRED.APIKey)
}

func TestRetentionWindowFloorsAtDefault(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, RetentionConfig{StoryDays: 0}.Window())
	assert.Equal(t, 7*24*time.Hour, RetentionConfig{StoryDays: -3}.Window())
	assert.Equal(t, 24*time.Hour, RetentionConfig{StoryDays: 1}.Window())
}

func TestScheduleBadDurationFallsBack(t *testing.T) {
	s := ScheduleConfig{IngestInterval: "soon", RenderInterval: ""}
	assert.Equal(t, time.Hour, s.ParseIngestInterval())
	assert.Equal(t, time.Hour, s.ParseRenderInterval())
}
