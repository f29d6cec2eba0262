package report

import (
	"FeatureBench/pipeline"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store persists run summaries in PostgreSQL. Each run keeps its per-frame
// match counts as a pgvector profile so runs with a similar tracking
// behaviour can be looked up.
type Store struct {
	pool *pgxpool.Pool
}

var ErrRunNotFound = errors.New("run not stored")

type StoredRun struct {
	ID          string               `json:"id"`
	Combination pipeline.Combination `json:"combination"`
	MatchPoints float64              `json:"matchPoints"`
	Distance    float64              `json:"distance"`
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the vector extension and the runs table.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            detector TEXT NOT NULL,
            descriptor TEXT NOT NULL,
            matcher TEXT NOT NULL,
            selector TEXT NOT NULL,
            focus_on_vehicle BOOLEAN NOT NULL,
            limit_keypoints BOOLEAN NOT NULL,
            detect_ms DOUBLE PRECISION NOT NULL,
            points DOUBLE PRECISION NOT NULL,
            describe_ms DOUBLE PRECISION NOT NULL,
            match_ms DOUBLE PRECISION NOT NULL,
            match_points DOUBLE PRECISION NOT NULL,
            detect_errors INTEGER NOT NULL,
            describe_errors INTEGER NOT NULL,
            match_errors INTEGER NOT NULL,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            profile vector
        );
        CREATE INDEX IF NOT EXISTS idx_runs_combination ON runs(detector, descriptor, matcher, selector);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	return nil
}

// Profile is the per-frame match count of a run.
func Profile(s pipeline.RunSummary) []float32 {
	out := make([]float32, len(s.Stats))
	for i, st := range s.Stats {
		out[i] = float32(st.MatchPoints)
	}
	return out
}

func (s *Store) Write(ctx context.Context, doc Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, run := range doc.Summaries {
		agg := pipeline.Summarize(run)
		c := run.Combination
		_, err := tx.Exec(ctx,
			`INSERT INTO runs
            (id, detector, descriptor, matcher, selector, focus_on_vehicle, limit_keypoints,
             detect_ms, points, describe_ms, match_ms, match_points,
             detect_errors, describe_errors, match_errors, started_at, finished_at, profile)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
            ON CONFLICT (id) DO NOTHING`,
			run.ID, c.Detector, c.Descriptor, c.Matcher, c.Selector, run.FocusOnVehicle, run.LimitKeypoints,
			ms(agg.DetectTime), agg.Points, ms(agg.DescribeTime), ms(agg.MatchTime), agg.MatchPoints,
			run.DetectErrors, run.DescribeErrors, run.MatchErrors, run.StartedAt, run.FinishedAt,
			pgvector.NewVector(Profile(run)))
		if err != nil {
			return fmt.Errorf("failed to store run %s: %w", run.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// SimilarRuns returns the runs whose match profile is closest to the one of
// run id, nearest first. Only profiles over the same number of frames compare.
func (s *Store) SimilarRuns(ctx context.Context, id string, limit int) ([]StoredRun, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s: %w", ErrRunNotFound, id, pgx.ErrNoRows)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.detector, r.descriptor, r.matcher, r.selector, r.match_points,
        r.profile <-> q.profile AS distance
        FROM runs r, (SELECT profile FROM runs WHERE id = $1) q
        WHERE r.id <> $1 AND vector_dims(r.profile) = vector_dims(q.profile)
        ORDER BY distance
        LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar runs: %w", err)
	}
	defer rows.Close()

	var out []StoredRun
	for rows.Next() {
		var r StoredRun
		if err := rows.Scan(&r.ID, &r.Combination.Detector, &r.Combination.Descriptor, &r.Combination.Matcher,
			&r.Combination.Selector, &r.MatchPoints, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan similar runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
