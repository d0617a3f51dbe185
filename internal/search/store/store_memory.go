package store

import (
	"context"
	"fmt"
	"sync"

	"scout/internal/search/models"
	"scout/pkg/platform/sentinel"
)

// InMemoryStore keeps searches in a map plus an ordered id list.
type InMemoryStore struct {
	mu       sync.RWMutex
	searches map[string]*models.Search
	order    []string
}

// NewInMemory creates an empty in-memory search store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{searches: make(map[string]*models.Search)}
}

func (s *InMemoryStore) Create(_ context.Context, search *models.Search) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.searches[search.ID]; ok {
		return fmt.Errorf("search %s already exists: %w", search.ID, sentinel.ErrConflict)
	}
	s.searches[search.ID] = search.Clone()
	s.order = append(s.order, search.ID)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, search *models.Search) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.searches[search.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.searches[search.ID] = search.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Search, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search, ok := s.searches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return search.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Search, error) {
	return s.collect(func(*models.Search) bool { return true }), nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*models.Search, error) {
	return s.collect(func(search *models.Search) bool { return !search.IsTerminal() }), nil
}

func (s *InMemoryStore) collect(keep func(*models.Search) bool) []*models.Search {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Search, 0, len(s.order))
	for _, id := range s.order {
		if search := s.searches[id]; keep(search) {
			out = append(out, search.Clone())
		}
	}
	return out
}
