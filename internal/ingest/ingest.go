// Package ingest orchestrates one fetch-and-store pass over the
// configured sources. The orchestrator holds no state across runs:
// persistence upserts reconcile every run against existing rows, so
// re-running on a schedule accumulates no duplicates.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaolong-y/meridian/internal/config"
	"github.com/xiaolong-y/meridian/internal/store"
	"github.com/xiaolong-y/meridian/pkg/connector"
)

// Summary reports what one run accomplished. Errors are collected, not
// propagated: no source failure aborts the pass.
type Summary struct {
	Observations  int
	Stories       int
	StoriesPurged int64
	Errors        []string
}

// Orchestrator routes configured sources through their connectors into
// the store.
type Orchestrator struct {
	store     store.Store
	registry  *Registry
	retention time.Duration
	log       zerolog.Logger
}

// New creates an orchestrator.
func New(s store.Store, registry *Registry, retention time.Duration, log zerolog.Logger) *Orchestrator {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Orchestrator{
		store:     s,
		registry:  registry,
		retention: retention,
		log:       log,
	}
}

// Run ingests every configured metric and feed sequentially, then
// purges stale stories once.
func (o *Orchestrator) Run(ctx context.Context, metrics []config.Metric, feeds []config.Feed) Summary {
	var summary Summary
	o.IngestMetrics(ctx, metrics, &summary)
	o.IngestFeeds(ctx, feeds, &summary)

	purged, err := o.store.PurgeStaleStories(ctx, o.retention)
	if err != nil {
		o.log.Error().Err(err).Msg("purge stale stories")
		summary.Errors = append(summary.Errors, fmt.Sprintf("purge: %v", err))
	} else if purged > 0 {
		o.log.Info().Int64("purged", purged).Msg("purged stale stories")
	}
	summary.StoriesPurged = purged
	return summary
}

// IngestMetrics fetches every configured metric. A metric with an
// unknown source tag, a failed fetch, or a failed write is logged and
// skipped; the remaining metrics still run.
func (o *Orchestrator) IngestMetrics(ctx context.Context, metrics []config.Metric, summary *Summary) {
	for _, m := range metrics {
		n, err := o.ingestMetric(ctx, m)
		if err != nil {
			o.log.Error().Err(err).Str("metric", m.ID).Msg("metric ingest failed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", m.ID, err))
			continue
		}
		summary.Observations += n
	}
}

func (o *Orchestrator) ingestMetric(ctx context.Context, m config.Metric) (int, error) {
	conn := o.registry.Metric(m.Source)
	if conn == nil {
		o.log.Warn().Str("metric", m.ID).Str("source", m.Source).Msg("unknown source, skipping")
		return 0, nil
	}

	o.log.Info().Str("metric", m.ID).Str("source", m.Source).Msg("fetching metric")

	points, err := connector.FetchObservations(ctx, conn, metricConfig(m))
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	if err := o.store.UpsertObservations(ctx, points); err != nil {
		return 0, err
	}

	if err := o.store.UpsertMetricSnapshot(ctx, o.buildSnapshot(m, points)); err != nil {
		return 0, err
	}

	o.log.Info().Str("metric", m.ID).Int("observations", len(points)).Msg("metric stored")
	return len(points), nil
}

// buildSnapshot derives the metadata cache row from the two newest
// points by obs_date.
func (o *Orchestrator) buildSnapshot(m config.Metric, points []connector.Observation) *store.MetricSnapshot {
	sorted := make([]connector.Observation, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ObsDate > sorted[j].ObsDate })

	snap := &store.MetricSnapshot{
		ID:          m.ID,
		Name:        m.Name,
		Source:      m.Source,
		Frequency:   m.Frequency,
		Unit:        m.Unit,
		LastValue:   sorted[0].Value,
		LastUpdated: time.Now().UTC(),
	}
	if len(sorted) > 1 {
		prev := sorted[1].Value
		snap.PreviousValue = &prev
		snap.Change, snap.ChangePercent = computeChange(sorted[0].Value, prev)
	}
	return snap
}

// computeChange returns (change, change_percent) for a latest value
// against its predecessor. The percent is nil when the predecessor is
// zero; there is no division-by-zero path.
func computeChange(last, previous float64) (*float64, *float64) {
	change := last - previous
	if previous == 0 {
		return &change, nil
	}
	pct := change / previous * 100
	return &change, &pct
}

// IngestFeeds fetches every configured feed with the same per-source
// resilience as metrics, without the snapshot step.
func (o *Orchestrator) IngestFeeds(ctx context.Context, feeds []config.Feed, summary *Summary) {
	for _, f := range feeds {
		conn := o.registry.Feed(f.Source)
		if conn == nil {
			o.log.Warn().Str("feed", f.ID).Str("source", f.Source).Msg("unknown source, skipping")
			continue
		}

		o.log.Info().Str("feed", f.ID).Str("source", f.Source).Msg("fetching feed")

		stories, err := connector.FetchStories(ctx, conn, feedConfig(f))
		if err != nil {
			o.log.Error().Err(err).Str("feed", f.ID).Msg("feed ingest failed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", f.ID, err))
			continue
		}

		if err := o.store.UpsertStories(ctx, stories); err != nil {
			o.log.Error().Err(err).Str("feed", f.ID).Msg("feed store failed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", f.ID, err))
			continue
		}

		o.log.Info().Str("feed", f.ID).Int("stories", len(stories)).Msg("feed stored")
		summary.Stories += len(stories)
	}
}

func metricConfig(m config.Metric) connector.MetricConfig {
	return connector.MetricConfig{
		ID:         m.ID,
		Name:       m.Name,
		Source:     m.Source,
		Frequency:  m.Frequency,
		Unit:       m.Unit,
		Decimals:   m.Decimals,
		Transform:  m.Transform,
		Multiplier: m.Multiplier,
		SeriesID:   m.SeriesID,
		Dataflow:   m.Dataflow,
		SeriesKey:  m.SeriesKey,
		Indicator:  m.Indicator,
		Country:    m.Country,
	}
}

func feedConfig(f config.Feed) connector.FeedConfig {
	return connector.FeedConfig{
		ID:        f.ID,
		Name:      f.Name,
		Source:    f.Source,
		Limit:     f.Limit,
		Endpoint:  f.Endpoint,
		Query:     f.Query,
		Tags:      f.Tags,
		TimeRange: f.TimeRange,
		MinScore:  f.MinScore,
		SortBy:    f.SortBy,
	}
}
