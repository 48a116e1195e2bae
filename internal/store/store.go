package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/xiaolong-y/meridian/pkg/connector"
)

// MetricSnapshot caches a metric's latest value and delta. It is fully
// derivable from the two newest observations of the metric and is
// overwritten wholesale on every successful ingest.
type MetricSnapshot struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Source        string    `db:"source" json:"source"`
	Frequency     string    `db:"frequency" json:"frequency"`
	Unit          string    `db:"unit" json:"unit"`
	LastValue     float64   `db:"last_value" json:"last_value"`
	LastUpdated   time.Time `db:"last_updated" json:"last_updated"`
	PreviousValue *float64  `db:"previous_value" json:"previous_value,omitempty"`
	Change        *float64  `db:"change" json:"change,omitempty"`
	ChangePercent *float64  `db:"change_percent" json:"change_percent,omitempty"`
}

// Store is the persistence interface. Every operation is idempotent:
// calling it twice with identical inputs leaves the same state as
// calling it once.
type Store interface {
	UpsertObservation(ctx context.Context, obs *connector.Observation) error
	UpsertObservations(ctx context.Context, obs []connector.Observation) error
	ListRecentObservations(ctx context.Context, metricID string, limit int) ([]connector.Observation, error)

	UpsertStory(ctx context.Context, story *connector.Story) error
	UpsertStories(ctx context.Context, stories []connector.Story) error
	ListStoriesByFeed(ctx context.Context, feedID string, limit int) ([]connector.Story, error)
	PurgeStaleStories(ctx context.Context, window time.Duration) (int64, error)

	UpsertMetricSnapshot(ctx context.Context, snap *MetricSnapshot) error
	ListMetricSnapshots(ctx context.Context) ([]MetricSnapshot, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and initializes the schema. This is the
// only store failure that is fatal to the process.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const upsertObservationSQL = `
	INSERT INTO observations (metric_id, obs_date, value, unit, source, retrieved_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(metric_id, obs_date, source) DO UPDATE SET
		value = excluded.value,
		retrieved_at = excluded.retrieved_at
`

func (s *SQLiteStore) UpsertObservation(ctx context.Context, obs *connector.Observation) error {
	_, err := s.db.ExecContext(ctx, upsertObservationSQL,
		obs.MetricID, obs.ObsDate, obs.Value, obs.Unit, obs.Source, obs.RetrievedAt)
	if err != nil {
		return fmt.Errorf("upsert observation %s/%s: %w", obs.MetricID, obs.ObsDate, err)
	}
	return nil
}

// UpsertObservations writes a batch in one transaction. Either every
// point lands or none does.
func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []connector.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin observations tx: %w", err)
	}
	for i := range obs {
		o := &obs[i]
		if _, err := tx.ExecContext(ctx, upsertObservationSQL,
			o.MetricID, o.ObsDate, o.Value, o.Unit, o.Source, o.RetrievedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert observation %s/%s: %w", o.MetricID, o.ObsDate, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRecentObservations(ctx context.Context, metricID string, limit int) ([]connector.Observation, error) {
	if limit <= 0 {
		limit = 120
	}
	var obs []connector.Observation
	err := s.db.SelectContext(ctx, &obs, `
		SELECT metric_id, obs_date, value, unit, source, retrieved_at
		FROM observations
		WHERE metric_id = ?
		ORDER BY obs_date DESC
		LIMIT ?
	`, metricID, limit)
	if err != nil {
		return nil, fmt.Errorf("list observations %s: %w", metricID, err)
	}
	return obs, nil
}

// Story upserts update only the volatile fields. Title, url, author and
// posted_at are frozen at first sighting.
const upsertStorySQL = `
	INSERT INTO stories (id, title, url, score, comments, author, posted_at, source, feed_id, retrieved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		score = excluded.score,
		comments = excluded.comments,
		retrieved_at = excluded.retrieved_at
`

func (s *SQLiteStore) UpsertStory(ctx context.Context, story *connector.Story) error {
	_, err := s.db.ExecContext(ctx, upsertStorySQL,
		story.ID, story.Title, story.URL, story.Score, story.Comments,
		story.Author, story.PostedAt, story.Source, story.FeedID, story.RetrievedAt)
	if err != nil {
		return fmt.Errorf("upsert story %s: %w", story.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertStories(ctx context.Context, stories []connector.Story) error {
	if len(stories) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stories tx: %w", err)
	}
	for i := range stories {
		st := &stories[i]
		if _, err := tx.ExecContext(ctx, upsertStorySQL,
			st.ID, st.Title, st.URL, st.Score, st.Comments,
			st.Author, st.PostedAt, st.Source, st.FeedID, st.RetrievedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert story %s: %w", st.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stories: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListStoriesByFeed(ctx context.Context, feedID string, limit int) ([]connector.Story, error) {
	if limit <= 0 {
		limit = 20
	}
	var stories []connector.Story
	err := s.db.SelectContext(ctx, &stories, `
		SELECT id, title, url, score, comments, author, posted_at, source, feed_id, retrieved_at
		FROM stories
		WHERE feed_id = ?
		ORDER BY score DESC, id ASC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stories %s: %w", feedID, err)
	}
	return stories, nil
}

// PurgeStaleStories deletes stories last seen before now-window and
// returns the number removed. This is the only hard-delete in the
// system.
func (s *SQLiteStore) PurgeStaleStories(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-window)
	res, err := s.db.ExecContext(ctx, "DELETE FROM stories WHERE retrieved_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge stale stories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge stale stories: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) UpsertMetricSnapshot(ctx context.Context, snap *MetricSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (id, name, source, frequency, unit,
			last_value, last_updated, previous_value, change, change_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			frequency = excluded.frequency,
			unit = excluded.unit,
			last_value = excluded.last_value,
			last_updated = excluded.last_updated,
			previous_value = excluded.previous_value,
			change = excluded.change,
			change_percent = excluded.change_percent
	`, snap.ID, snap.Name, snap.Source, snap.Frequency, snap.Unit,
		snap.LastValue, snap.LastUpdated, snap.PreviousValue, snap.Change, snap.ChangePercent)
	if err != nil {
		return fmt.Errorf("upsert metric snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListMetricSnapshots(ctx context.Context) ([]MetricSnapshot, error) {
	var snaps []MetricSnapshot
	err := s.db.SelectContext(ctx, &snaps, "SELECT * FROM metrics ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list metric snapshots: %w", err)
	}
	return snaps, nil
}
