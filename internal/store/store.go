package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/vidradar/pkg/trend"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// Run is a stored ranking call.
type Run struct {
	ID               string    `db:"id" json:"id"`
	Query            string    `db:"query" json:"query"`
	Region           string    `db:"region" json:"region"`
	Intent           string    `db:"intent" json:"intent"`
	Normalization    string    `db:"normalization" json:"normalization"`
	Received         int       `db:"received" json:"received"`
	Invalid          int       `db:"invalid" json:"invalid"`
	Duplicates       int       `db:"duplicates" json:"duplicates"`
	Filtered         int       `db:"filtered" json:"filtered"`
	Ranked           int       `db:"ranked" json:"ranked"`
	TopVideoID       string    `db:"top_video_id" json:"top_video_id"`
	TopTrulyTrending bool      `db:"top_truly_trending" json:"top_truly_trending"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`

	RankingJSON string         `db:"ranking" json:"-"`
	Ranking     *trend.Ranking `db:"-" json:"ranking,omitempty"`
}

// Snapshot is one appearance of a video in a stored run.
type Snapshot struct {
	RunID           string    `db:"run_id" json:"run_id"`
	Region          string    `db:"region" json:"region"`
	Rank            int       `db:"rank" json:"rank"`
	Views           int64     `db:"views" json:"views"`
	Likes           int64     `db:"likes" json:"likes"`
	Comments        int64     `db:"comments" json:"comments"`
	Momentum        float64   `db:"momentum" json:"momentum"`
	NormalizedScore float64   `db:"normalized_score" json:"normalized_score"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ListOpts controls run listing.
type ListOpts struct {
	Query  string
	Region string
	Since  time.Time
	Limit  int
}

// Store is the persistence interface.
type Store interface {
	SaveRun(ctx context.Context, r *trend.Ranking) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOpts) ([]Run, error)
	LatestRun(ctx context.Context, query, region string) (*Run, error)
	VideoHistory(ctx context.Context, videoID string, since time.Time) ([]Snapshot, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type resultRow struct {
	RunID           string  `db:"run_id"`
	Rank            int     `db:"rank"`
	VideoID         string  `db:"video_id"`
	Title           string  `db:"title"`
	Channel         string  `db:"channel"`
	Source          string  `db:"source"`
	Views           int64   `db:"views"`
	Likes           int64   `db:"likes"`
	Comments        int64   `db:"comments"`
	AgeHours        float64 `db:"age_hours"`
	Momentum        float64 `db:"momentum"`
	NormalizedScore float64 `db:"normalized_score"`
	Relevance       float64 `db:"relevance"`
	Confidence      float64 `db:"confidence"`
	DetectedRegion  string  `db:"detected_region"`
	TrulyTrending   bool    `db:"truly_trending"`
}

// SaveRun stores a ranking and its results. It assigns r.ID and r.CreatedAt when unset.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *trend.Ranking) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", r.ID, err)
	}

	filtered := 0
	for _, n := range r.Stats.Filtered {
		filtered += n
	}
	var topID string
	var topTrending bool
	if top, ok := r.Top(); ok {
		topID, topTrending = top.Record.ID, top.TrulyTrending
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, query, region, intent, normalization, received, invalid, duplicates, filtered, ranked, top_video_id, top_truly_trending, ranking, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Query, r.Region, string(r.Context.Intent), string(r.Normalization),
		r.Stats.Received, r.Stats.Invalid, r.Stats.Duplicates, filtered, r.Stats.Ranked,
		topID, topTrending, string(payload), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for _, res := range r.Results {
		row := resultRow{
			RunID:           r.ID,
			Rank:            res.Rank,
			VideoID:         res.Record.ID,
			Title:           res.Record.Title,
			Channel:         res.Record.Channel,
			Source:          string(res.Record.Source),
			Views:           res.Record.Views,
			Likes:           res.Record.Likes,
			Comments:        res.Record.Comments,
			AgeHours:        res.Record.AgeHours,
			Momentum:        res.Momentum,
			NormalizedScore: res.NormalizedScore,
			Relevance:       res.Relevance.Score,
			Confidence:      res.Confidence,
			DetectedRegion:  res.Geography.DetectedRegion,
			TrulyTrending:   res.TrulyTrending,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO results (run_id, rank, video_id, title, channel, source, views, likes, comments, age_hours, momentum, normalized_score, relevance, confidence, detected_region, truly_trending)
			VALUES (:run_id, :rank, :video_id, :title, :channel, :source, :views, :likes, :comments, :age_hours, :momentum, :normalized_score, :relevance, :confidence, :detected_region, :truly_trending)
		`, row)
		if err != nil {
			return fmt.Errorf("insert result %s/%d: %w", r.ID, res.Rank, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.ID, err)
	}
	return nil
}

const runColumns = "id, query, region, intent, normalization, received, invalid, duplicates, filtered, ranked, top_video_id, top_truly_trending, created_at"

// GetRun returns a run with its full ranking.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT "+runColumns+", ranking FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var ranking trend.Ranking
	if err := json.Unmarshal([]byte(run.RankingJSON), &ranking); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	run.Ranking = &ranking
	return &run, nil
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOpts) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	var args []any

	if opts.Query != "" {
		query += " AND query = ?"
		args = append(args, opts.Query)
	}
	if opts.Region != "" {
		query += " AND region = ?"
		args = append(args, opts.Region)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY created_at DESC, id"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest run summary for a query and region.
func (s *SQLiteStore) LatestRun(ctx context.Context, query, region string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run,
		"SELECT "+runColumns+" FROM runs WHERE query = ? AND region = ? ORDER BY created_at DESC LIMIT 1",
		query, region)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run %q/%s: %w", query, region, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run %q/%s: %w", query, region, err)
	}
	return &run, nil
}

// VideoHistory returns every stored appearance of a video since a time, oldest first.
func (s *SQLiteStore) VideoHistory(ctx context.Context, videoID string, since time.Time) ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT r.run_id, runs.region, r.rank, r.views, r.likes, r.comments, r.momentum, r.normalized_score, runs.created_at
		FROM results r JOIN runs ON runs.id = r.run_id
		WHERE r.video_id = ? AND runs.created_at >= ?
		ORDER BY runs.created_at
	`, videoID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("video history %s: %w", videoID, err)
	}
	return snaps, nil
}
