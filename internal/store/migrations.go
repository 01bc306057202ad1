package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id                 TEXT PRIMARY KEY,
    query              TEXT NOT NULL DEFAULT '',
    region             TEXT NOT NULL,
    intent             TEXT NOT NULL DEFAULT '',
    normalization      TEXT NOT NULL DEFAULT '',
    received           INTEGER NOT NULL DEFAULT 0,
    invalid            INTEGER NOT NULL DEFAULT 0,
    duplicates         INTEGER NOT NULL DEFAULT 0,
    filtered           INTEGER NOT NULL DEFAULT 0,
    ranked             INTEGER NOT NULL DEFAULT 0,
    top_video_id       TEXT NOT NULL DEFAULT '',
    top_truly_trending BOOLEAN NOT NULL DEFAULT 0,
    ranking            TEXT NOT NULL DEFAULT '{}',
    created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_query_region ON runs(query, region);

CREATE TABLE IF NOT EXISTS results (
    run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank             INTEGER NOT NULL,
    video_id         TEXT NOT NULL,
    title            TEXT NOT NULL DEFAULT '',
    channel          TEXT NOT NULL DEFAULT '',
    source           TEXT NOT NULL DEFAULT '',
    views            INTEGER NOT NULL DEFAULT 0,
    likes            INTEGER NOT NULL DEFAULT 0,
    comments         INTEGER NOT NULL DEFAULT 0,
    age_hours        REAL NOT NULL DEFAULT 0,
    momentum         REAL NOT NULL DEFAULT 0,
    normalized_score REAL NOT NULL DEFAULT 0,
    relevance        REAL NOT NULL DEFAULT 0,
    confidence       REAL NOT NULL DEFAULT 0,
    detected_region  TEXT NOT NULL DEFAULT '',
    truly_trending   BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_results_video ON results(video_id);
`
