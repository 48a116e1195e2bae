package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaolong-y/meridian/internal/config"
	"github.com/xiaolong-y/meridian/internal/ingest"
	"github.com/xiaolong-y/meridian/internal/scheduler"
	"github.com/xiaolong-y/meridian/internal/store"
	"github.com/xiaolong-y/meridian/pkg/connector"
	"github.com/xiaolong-y/meridian/pkg/render"
	"github.com/xiaolong-y/meridian/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// buildRegistry wires every connector once at startup.
func buildRegistry(cfg *config.Config) *ingest.Registry {
	reg := ingest.NewRegistry()
	reg.RegisterMetric(connector.NewFRED(cfg.Sources.FRED.APIKey))
	reg.RegisterMetric(connector.NewECB())
	reg.RegisterMetric(connector.NewWorldBank())
	reg.RegisterFeed(connector.NewHNFirebase())
	reg.RegisterFeed(connector.NewHNAlgolia())
	reg.RegisterFeed(connector.NewRSS())
	return reg
}

func runUpdate(doIngest, doRender bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if doIngest {
		orch := ingest.New(db, buildRegistry(cfg), cfg.Retention.Window(), log)
		summary := orch.Run(ctx, cfg.Metrics, cfg.Feeds)
		fmt.Fprintf(os.Stderr, "\ningested %d observations, %d stories (%d purged, %d errors)\n",
			summary.Observations, summary.Stories, summary.StoriesPurged, len(summary.Errors))
	}

	if doRender {
		gen, err := render.New(db, cfg)
		if err != nil {
			return err
		}
		path, err := gen.Generate(ctx)
		if err != nil {
			return fmt.Errorf("render dashboard: %w", err)
		}
		fmt.Fprintf(os.Stderr, "generated %s\n", path)
	}

	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}
	log := newLogger()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	gen, err := render.New(db, cfg)
	if err != nil {
		return err
	}

	return server.New(db, gen, port, log).ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}
	log := newLogger()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	gen, err := render.New(db, cfg)
	if err != nil {
		return err
	}

	orch := ingest.New(db, buildRegistry(cfg), cfg.Retention.Window(), log)
	sched := scheduler.New(orch, gen, cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler error")
		}
	}()

	return server.New(db, gen, port, log).ListenAndServe()
}

func runHealth() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	reg := buildRegistry(cfg)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tKIND\tHEALTHY")
	for _, nc := range reg.Connectors() {
		fmt.Fprintf(w, "%s\t%s\t%v\n", nc.Source, nc.Kind, connector.Healthy(ctx, nc.Connector))
	}
	return w.Flush()
}
