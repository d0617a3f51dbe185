package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"scout/internal/search/models"
	"scout/pkg/platform/sentinel"
)

// Schema creates the searches table. seq carries creation order.
const Schema = `
CREATE TABLE IF NOT EXISTS searches (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS searches_status_idx ON searches (status);
`

const uniqueViolation = "23505"

// PostgresStore persists searches as JSONB with status broken out for the
// poller's active scan.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed search store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create searches schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, search *models.Search) error {
	payload, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO searches (id, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		search.ID, string(search.Status), payload, search.CreatedAt, search.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("search %s already exists: %w", search.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create search: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, search *models.Search) error {
	payload, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE searches SET status = $2, payload = $3, updated_at = $4
		WHERE id = $1`,
		search.ID, string(search.Status), payload, search.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update search: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update search: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Search, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM searches WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find search: %w", err)
	}
	return decodeSearch(payload)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Search, error) {
	return s.query(ctx, `SELECT payload FROM searches ORDER BY seq`)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Search, error) {
	return s.query(ctx, `SELECT payload FROM searches WHERE status IN ($1, $2) ORDER BY seq`,
		string(models.StatusPending), string(models.StatusInProgress))
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*models.Search, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	out := []*models.Search{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		search, err := decodeSearch(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, search)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate searches: %w", err)
	}
	return out, nil
}
