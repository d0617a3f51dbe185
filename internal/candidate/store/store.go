// Package store persists candidates. Every backend keeps candidates in
// insertion order and returns deep copies, so callers never share memory
// with the store.
package store

import (
	"context"

	"scout/internal/candidate/models"
)

// Store is the candidate record store. Upsert is the only mutation: it
// inserts an unseen candidate or replaces an existing one that belongs to
// the same search. Replacing a candidate owned by another search fails with
// sentinel.ErrConflict. FindByID fails with sentinel.ErrNotFound.
type Store interface {
	Upsert(ctx context.Context, c *models.Candidate) (created bool, err error)
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	Query(ctx context.Context, filter models.Filter) ([]*models.Candidate, error)
	CountBySearch(ctx context.Context, searchID string) (int, error)
}

const (
	outcomeCreated  = "created"
	outcomeUpdated  = "updated"
	outcomeConflict = "conflict"
)
