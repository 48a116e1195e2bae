package store

const schema = `
CREATE TABLE IF NOT EXISTS observations (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    metric_id    TEXT NOT NULL,
    obs_date     TEXT NOT NULL, -- YYYY-MM-DD
    value        REAL NOT NULL,
    unit         TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL,
    retrieved_at DATETIME NOT NULL,
    UNIQUE(metric_id, obs_date, source)
);

CREATE INDEX IF NOT EXISTS idx_observations_metric ON observations(metric_id);
CREATE INDEX IF NOT EXISTS idx_observations_date ON observations(obs_date DESC);

CREATE TABLE IF NOT EXISTS stories (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    score        INTEGER NOT NULL DEFAULT 0,
    comments     INTEGER NOT NULL DEFAULT 0,
    author       TEXT NOT NULL DEFAULT '',
    posted_at    DATETIME NOT NULL,
    source       TEXT NOT NULL,
    feed_id      TEXT NOT NULL,
    retrieved_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stories_feed ON stories(feed_id);
CREATE INDEX IF NOT EXISTS idx_stories_score ON stories(score DESC);
CREATE INDEX IF NOT EXISTS idx_stories_retrieved ON stories(retrieved_at);

CREATE TABLE IF NOT EXISTS metrics (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    source         TEXT NOT NULL,
    frequency      TEXT NOT NULL DEFAULT '',
    unit           TEXT NOT NULL DEFAULT '',
    last_value     REAL NOT NULL,
    last_updated   DATETIME NOT NULL,
    previous_value REAL,
    change         REAL,
    change_percent REAL
);
`
