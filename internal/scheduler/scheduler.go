// Package scheduler drives periodic ingestion and dashboard rendering
// for the daemon mode. Each tick is a full stateless orchestrator run;
// overlap between runs is last-write-wins at the row level.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaolong-y/meridian/internal/config"
	"github.com/xiaolong-y/meridian/internal/ingest"
	"github.com/xiaolong-y/meridian/pkg/render"
)

// Scheduler runs periodic ingest and render passes.
type Scheduler struct {
	orch      *ingest.Orchestrator
	gen       *render.Generator
	cfg       *config.Config
	ingestInt time.Duration
	renderInt time.Duration
	log       zerolog.Logger
}

// New creates a scheduler.
func New(orch *ingest.Orchestrator, gen *render.Generator, cfg *config.Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		orch:      orch,
		gen:       gen,
		cfg:       cfg,
		ingestInt: cfg.Schedule.ParseIngestInterval(),
		renderInt: cfg.Schedule.ParseRenderInterval(),
		log:       log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ingestTicker := time.NewTicker(s.ingestInt)
	renderTicker := time.NewTicker(s.renderInt)
	defer ingestTicker.Stop()
	defer renderTicker.Stop()

	// Run immediately on start.
	s.ingest(ctx)
	s.render(ctx)

	s.log.Info().
		Dur("ingest_every", s.ingestInt).
		Dur("render_every", s.renderInt).
		Msg("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ingestTicker.C:
			s.ingest(ctx)
		case <-renderTicker.C:
			s.render(ctx)
		}
	}
}

func (s *Scheduler) ingest(ctx context.Context) {
	summary := s.orch.Run(ctx, s.cfg.Metrics, s.cfg.Feeds)
	s.log.Info().
		Int("observations", summary.Observations).
		Int("stories", summary.Stories).
		Int64("purged", summary.StoriesPurged).
		Int("errors", len(summary.Errors)).
		Msg("ingest pass complete")
}

func (s *Scheduler) render(ctx context.Context) {
	path, err := s.gen.Generate(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("render failed")
		return
	}
	s.log.Info().Str("path", path).Msg("dashboard rendered")
}
