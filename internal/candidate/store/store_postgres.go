package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scout/internal/candidate/metrics"
	"scout/internal/candidate/models"
	"scout/pkg/platform/sentinel"
)

// Schema creates the candidates table. seq carries insertion order.
const Schema = `
CREATE TABLE IF NOT EXISTS candidates (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	search_id  TEXT NOT NULL,
	score      DOUBLE PRECISION,
	verified   BOOLEAN NOT NULL DEFAULT FALSE,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS candidates_search_seq_idx ON candidates (search_id, seq);
`

// PostgresStore persists candidates as JSONB with the filterable columns
// broken out.
type PostgresStore struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// NewPostgres constructs a PostgreSQL-backed candidate store.
func NewPostgres(db *sql.DB, m *metrics.Metrics) *PostgresStore {
	return &PostgresStore{db: db, metrics: m}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create candidates schema: %w", err)
	}
	return nil
}

// Upsert relies on the conflict clause to refuse rows whose search differs:
// no row comes back in that case. xmax is zero only for freshly inserted rows.
func (s *PostgresStore) Upsert(ctx context.Context, c *models.Candidate) (bool, error) {
	if c == nil || c.ID == "" {
		return false, fmt.Errorf("candidate id is required")
	}
	defer s.metrics.ObserveStore("postgres", "upsert", time.Now())

	payload, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("encode candidate: %w", err)
	}

	var score sql.NullFloat64
	if c.Score != nil {
		score = sql.NullFloat64{Float64: *c.Score, Valid: true}
	}

	var created bool
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO candidates (id, search_id, score, verified, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			score = EXCLUDED.score,
			verified = EXCLUDED.verified,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		WHERE candidates.search_id = EXCLUDED.search_id
		RETURNING (xmax = 0)`,
		c.ID, c.SearchID, score, c.IsVerified(), payload, c.CreatedAt, c.UpdatedAt,
	).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.IncrementUpsert(outcomeConflict)
		return false, fmt.Errorf("candidate %s belongs to another search: %w", c.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return false, fmt.Errorf("upsert candidate: %w", err)
	}
	if created {
		s.metrics.IncrementUpsert(outcomeCreated)
	} else {
		s.metrics.IncrementUpsert(outcomeUpdated)
	}
	return created, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	defer s.metrics.ObserveStore("postgres", "find", time.Now())

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM candidates WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	return decodeCandidate(payload)
}

func (s *PostgresStore) Query(ctx context.Context, filter models.Filter) ([]*models.Candidate, error) {
	defer s.metrics.ObserveStore("postgres", "query", time.Now())

	var minScore sql.NullFloat64
	if filter.MinScore != nil {
		minScore = sql.NullFloat64{Float64: *filter.MinScore, Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM candidates
		WHERE ($1 = '' OR search_id = $1)
		  AND ($2::DOUBLE PRECISION IS NULL OR score >= $2)
		  AND (NOT $3 OR verified)
		ORDER BY seq`,
		filter.SearchID, minScore, filter.VerifiedOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := []*models.Candidate{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c, err := decodeCandidate(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	s.metrics.ObserveQueryResults(len(out))
	return out, nil
}

func (s *PostgresStore) CountBySearch(ctx context.Context, searchID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates WHERE search_id = $1`, searchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return n, nil
}

func decodeCandidate(payload []byte) (*models.Candidate, error) {
	var c models.Candidate
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	return &c, nil
}
