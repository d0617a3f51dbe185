// Package store persists searches in creation order. Backends return deep
// copies so a caller can never mutate stored state behind the service's back.
package store

import (
	"context"

	"scout/internal/search/models"
)

// Store is the search repository. Create fails with sentinel.ErrConflict
// for a duplicate id; Update and FindByID fail with sentinel.ErrNotFound for
// an unknown one.
type Store interface {
	Create(ctx context.Context, s *models.Search) error
	Update(ctx context.Context, s *models.Search) error
	FindByID(ctx context.Context, id string) (*models.Search, error)
	List(ctx context.Context) ([]*models.Search, error)
	ListActive(ctx context.Context) ([]*models.Search, error)
}
