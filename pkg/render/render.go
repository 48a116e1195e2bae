// Package render generates the static HTML dashboard. It consumes only
// the store's read operations and never writes to it.
package render

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xiaolong-y/meridian/internal/config"
	"github.com/xiaolong-y/meridian/internal/store"
)

//go:embed dashboard.html.tmpl
var templates embed.FS

// Generator renders the dashboard from stored data.
type Generator struct {
	store store.Store
	cfg   *config.Config
	tmpl  *template.Template
}

// New creates a dashboard generator.
func New(s store.Store, cfg *config.Config) (*Generator, error) {
	tmpl, err := template.ParseFS(templates, "dashboard.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	return &Generator{store: s, cfg: cfg, tmpl: tmpl}, nil
}

// Generate renders the dashboard to <output_dir>/index.html and
// returns the written path.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	outDir := g.cfg.Render.OutputDir
	if outDir == "" {
		outDir = "./docs"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", outDir, err)
	}

	path := filepath.Join(outDir, "index.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := g.Render(ctx, f); err != nil {
		return "", err
	}
	return path, nil
}

// Render writes the dashboard HTML to w.
func (g *Generator) Render(ctx context.Context, w io.Writer) error {
	page, err := g.buildPage(ctx)
	if err != nil {
		return err
	}
	if err := g.tmpl.Execute(w, page); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

type metricCell struct {
	ID              string
	Name            string
	FormattedValue  string
	FormattedChange string
	ChangeClass     string
	Arrow           string
	Sparkline       string
}

type groupView struct {
	Name    string
	Metrics []metricCell
}

type storyView struct {
	Title    string
	URL      string
	Domain   string
	Author   string
	Score    int
	Comments int
	TimeAgo  string
	Heat     string
}

type feedView struct {
	ID      string
	Name    string
	Stories []storyView
}

type pageView struct {
	Title       string
	GeneratedAt string
	Groups      []groupView
	Primary     *feedView
	Sidebar     []feedView
}

func (g *Generator) buildPage(ctx context.Context) (*pageView, error) {
	snaps, err := g.store.ListMetricSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.MetricSnapshot, len(snaps))
	for _, s := range snaps {
		byID[s.ID] = s
	}

	page := &pageView{
		Title:       g.cfg.Render.Title,
		GeneratedAt: time.Now().UTC().Format("2006-01-02 15:04 UTC"),
	}
	if page.Title == "" {
		page.Title = "Meridian"
	}

	for _, group := range g.cfg.Groups {
		gv := groupView{Name: group.Name}
		for _, id := range group.Metrics {
			snap, ok := byID[id]
			if !ok {
				// Metric not ingested yet: placeholder cell.
				gv.Metrics = append(gv.Metrics, metricCell{ID: id, Name: id, FormattedValue: "—"})
				continue
			}

			obs, err := g.store.ListRecentObservations(ctx, id, 12)
			if err != nil {
				return nil, err
			}
			values := make([]float64, 0, len(obs))
			for i := len(obs) - 1; i >= 0; i-- { // oldest first
				values = append(values, obs[i].Value)
			}

			gv.Metrics = append(gv.Metrics, metricCell{
				ID:              snap.ID,
				Name:            snap.Name,
				FormattedValue:  formatValue(snap.LastValue, snap.Unit),
				FormattedChange: formatChange(snap.Change, snap.Unit),
				ChangeClass:     changeClass(snap.Change),
				Arrow:           directionArrow(snap.Change),
				Sparkline:       sparkline(values),
			})
		}
		page.Groups = append(page.Groups, gv)
	}

	feedByID := make(map[string]config.Feed, len(g.cfg.Feeds))
	for _, f := range g.cfg.Feeds {
		feedByID[f.ID] = f
	}

	build := func(id string) (*feedView, error) {
		fc, ok := feedByID[id]
		if !ok {
			return nil, nil
		}
		stories, err := g.store.ListStoriesByFeed(ctx, fc.ID, fc.Limit)
		if err != nil {
			return nil, err
		}
		fv := &feedView{ID: fc.ID, Name: fc.Name}
		for _, s := range stories {
			fv.Stories = append(fv.Stories, storyView{
				Title:    s.Title,
				URL:      s.URL,
				Domain:   extractDomain(s.URL),
				Author:   s.Author,
				Score:    s.Score,
				Comments: s.Comments,
				TimeAgo:  timeAgo(s.PostedAt, time.Now().UTC()),
				Heat:     heatSymbol(s.Score),
			})
		}
		return fv, nil
	}

	if page.Primary, err = build(g.cfg.Display.PrimaryFeed); err != nil {
		return nil, err
	}
	for _, id := range g.cfg.Display.SidebarFeeds {
		fv, err := build(id)
		if err != nil {
			return nil, err
		}
		if fv != nil {
			page.Sidebar = append(page.Sidebar, *fv)
		}
	}

	return page, nil
}

// formatValue formats a metric value per its unit.
func formatValue(value float64, unit string) string {
	switch {
	case unit == "%":
		return fmt.Sprintf("%.1f%%", value)
	case unit == "bp":
		return fmt.Sprintf("%.0fbp", value)
	case strings.Contains(unit, "$"):
		return fmt.Sprintf("$%.2f", value)
	case unit == "index":
		return fmt.Sprintf("%.1f", value)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}

// formatChange formats a delta with a sign prefix. Percent-unit
// metrics change in percentage points, not percent-of-percent.
func formatChange(change *float64, unit string) string {
	if change == nil {
		return ""
	}
	prefix := ""
	if *change > 0 {
		prefix = "+"
	}
	switch unit {
	case "%":
		return fmt.Sprintf("%s%.2fpp", prefix, *change)
	case "bp":
		return fmt.Sprintf("%s%.0fbp", prefix, *change)
	default:
		return fmt.Sprintf("%s%.2f", prefix, *change)
	}
}

func changeClass(change *float64) string {
	switch {
	case change == nil:
		return ""
	case *change > 0:
		return "up"
	case *change < 0:
		return "down"
	default:
		return ""
	}
}

func directionArrow(change *float64) string {
	switch {
	case change == nil:
		return ""
	case *change > 0:
		return "⬆"
	case *change < 0:
		return "⬇"
	default:
		return "→"
	}
}

func heatSymbol(score int) string {
	switch {
	case score >= 1000:
		return "🔥"
	case score >= 500:
		return "⚡"
	case score >= 200:
		return "✦"
	default:
		return "•"
	}
}

func extractDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

// timeAgo renders a compact age: "now", "5m", "3h", "2d", "1w".
func timeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(diff.Hours()/(24*7)))
	}
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders values (oldest first) as a row of block glyphs.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	if max == min {
		for range values {
			b.WriteRune(sparkBlocks[len(sparkBlocks)/2])
		}
		return b.String()
	}
	for _, v := range values {
		idx := int((v - min) / (max - min) * float64(len(sparkBlocks)-1))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
