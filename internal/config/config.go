package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Retention RetentionConfig `yaml:"retention"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Server    ServerConfig    `yaml:"server"`
	Render    RenderConfig    `yaml:"render"`
	Sources   SourcesConfig   `yaml:"sources"`
	Metrics   []Metric        `yaml:"metrics"`
	Feeds     []Feed          `yaml:"feeds"`
	Groups    []MetricGroup   `yaml:"groups"`
	Display   DisplayConfig   `yaml:"display"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RetentionConfig configures the story rolling window.
type RetentionConfig struct {
	StoryDays int `yaml:"story_days"`
}

// Window returns the story retention window as a duration.
func (r RetentionConfig) Window() time.Duration {
	days := r.StoryDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// ScheduleConfig configures the daemon intervals.
type ScheduleConfig struct {
	IngestInterval string `yaml:"ingest_interval"`
	RenderInterval string `yaml:"render_interval"`
}

// ParseIngestInterval returns the ingest interval as time.Duration.
func (s ScheduleConfig) ParseIngestInterval() time.Duration {
	d, err := time.ParseDuration(s.IngestInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// ParseRenderInterval returns the render interval as time.Duration.
func (s ScheduleConfig) ParseRenderInterval() time.Duration {
	d, err := time.ParseDuration(s.RenderInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RenderConfig configures dashboard generation.
type RenderConfig struct {
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title"`
}

// SourcesConfig holds per-source credentials.
type SourcesConfig struct {
	FRED FREDConfig `yaml:"fred"`
}

// FREDConfig for the FRED connector.
type FREDConfig struct {
	APIKey string `yaml:"api_key"`
}

// Metric is one tracked economic series. The trailing fields are
// source-specific.
type Metric struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Source     string  `yaml:"source"`
	Frequency  string  `yaml:"frequency"`
	Unit       string  `yaml:"unit"`
	Decimals   int     `yaml:"decimals"`
	Transform  string  `yaml:"transform"`
	Multiplier float64 `yaml:"multiplier"`

	SeriesID  string `yaml:"series_id"`  // fred
	Dataflow  string `yaml:"dataflow"`   // ecb
	SeriesKey string `yaml:"series_key"` // ecb
	Indicator string `yaml:"indicator"`  // worldbank
	Country   string `yaml:"country"`    // worldbank
}

// Feed is one tracked discussion feed.
type Feed struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Limit  int    `yaml:"limit"`

	Endpoint  string `yaml:"endpoint"`   // hn_firebase list, or rss URL
	Query     string `yaml:"query"`      // hn_algolia
	Tags      string `yaml:"tags"`       // hn_algolia
	TimeRange string `yaml:"time_range"` // hn_algolia
	MinScore  int    `yaml:"min_score"`  // hn_algolia
	SortBy    string `yaml:"sort_by"`    // hn_algolia
}

// MetricGroup is a named dashboard section listing metric ids.
type MetricGroup struct {
	Name    string   `yaml:"name"`
	Metrics []string `yaml:"metrics"`
}

// DisplayConfig arranges feeds on the dashboard.
type DisplayConfig struct {
	PrimaryFeed  string   `yaml:"primary_feed"`
	SidebarFeeds []string `yaml:"sidebar_feeds"`
}

// Default returns a Config with sensible defaults: a small set of US,
// euro-area and world metrics plus the two Hacker News feeds.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Path: "./meridian.db"},
		Retention: RetentionConfig{StoryDays: 7},
		Schedule: ScheduleConfig{
			IngestInterval: "1h",
			RenderInterval: "1h",
		},
		Server: ServerConfig{Port: 8080},
		Render: RenderConfig{
			OutputDir: "./docs",
			Title:     "Meridian",
		},
		Metrics: []Metric{
			{
				ID: "us_cpi_yoy", Name: "US CPI YoY", Source: "fred",
				Frequency: "monthly", Unit: "%", Decimals: 1,
				SeriesID: "CPIAUCSL", Transform: "pct_change_yoy",
			},
			{
				ID: "us_unemployment", Name: "US Unemployment", Source: "fred",
				Frequency: "monthly", Unit: "%", Decimals: 1,
				SeriesID: "UNRATE",
			},
			{
				ID: "us_10y_yield", Name: "US 10Y Treasury", Source: "fred",
				Frequency: "daily", Unit: "%", Decimals: 2,
				SeriesID: "DGS10",
			},
			{
				ID: "eur_usd", Name: "EUR/USD", Source: "ecb",
				Frequency: "daily", Unit: "$", Decimals: 4,
				Dataflow: "EXR", SeriesKey: "D.USD.EUR.SP00.A",
			},
			{
				ID: "cn_gdp_growth", Name: "China GDP Growth", Source: "worldbank",
				Frequency: "annual", Unit: "%", Decimals: 1,
				Indicator: "NY.GDP.MKTP.KD.ZG", Country: "CN",
			},
		},
		Feeds: []Feed{
			{
				ID: "hn_top", Name: "Top Stories", Source: "hn_firebase",
				Endpoint: "topstories", Limit: 20,
			},
			{
				ID: "hn_ai", Name: "AI/ML", Source: "hn_algolia",
				Query: "AI", Tags: "story", TimeRange: "week",
				MinScore: 50, Limit: 15,
			},
		},
		Groups: []MetricGroup{
			{Name: "US Economy", Metrics: []string{"us_cpi_yoy", "us_unemployment", "us_10y_yield"}},
			{Name: "Global Markets", Metrics: []string{"eur_usd", "cn_gdp_growth"}},
		},
		Display: DisplayConfig{
			PrimaryFeed:  "hn_top",
			SidebarFeeds: []string{"hn_ai"},
		},
	}
}

// Load reads configuration from a YAML file and applies env var
// overrides. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MERIDIAN_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		cfg.Sources.FRED.APIKey = v
	}
}
