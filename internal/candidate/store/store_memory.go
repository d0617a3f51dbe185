package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"scout/internal/candidate/metrics"
	"scout/internal/candidate/models"
	"scout/pkg/platform/sentinel"
)

const shardCount = 32

type shard struct {
	mu         sync.RWMutex
	candidates map[string]*models.Candidate
}

// InMemoryStore shards candidates by id so writers for different candidates
// rarely contend. Ordering lives in a separately locked index. Lock order is
// always shard before index.
type InMemoryStore struct {
	shards  [shardCount]*shard
	metrics *metrics.Metrics

	indexMu  sync.RWMutex
	order    []string
	bySearch map[string][]string
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithInMemoryMetrics attaches store metrics.
func WithInMemoryMetrics(m *metrics.Metrics) InMemoryOption {
	return func(s *InMemoryStore) {
		s.metrics = m
	}
}

// NewInMemory creates an empty in-memory candidate store.
func NewInMemory(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{bySearch: make(map[string][]string)}
	for i := range s.shards {
		s.shards[i] = &shard{candidates: make(map[string]*models.Candidate)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *InMemoryStore) Upsert(_ context.Context, c *models.Candidate) (bool, error) {
	if c == nil || c.ID == "" {
		return false, fmt.Errorf("candidate id is required")
	}
	defer s.metrics.ObserveStore("memory", "upsert", time.Now())

	sh := s.shardFor(c.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, ok := sh.candidates[c.ID]
	if ok && existing.SearchID != c.SearchID {
		s.metrics.IncrementUpsert(outcomeConflict)
		return false, fmt.Errorf("candidate %s belongs to search %s: %w", c.ID, existing.SearchID, sentinel.ErrConflict)
	}
	sh.candidates[c.ID] = c.Clone()
	if ok {
		s.metrics.IncrementUpsert(outcomeUpdated)
		return false, nil
	}

	s.indexMu.Lock()
	s.order = append(s.order, c.ID)
	s.bySearch[c.SearchID] = append(s.bySearch[c.SearchID], c.ID)
	s.indexMu.Unlock()

	s.metrics.IncrementUpsert(outcomeCreated)
	return true, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Candidate, error) {
	defer s.metrics.ObserveStore("memory", "find", time.Now())
	if c, ok := s.load(id); ok {
		return c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) load(id string) (*models.Candidate, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.candidates[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (s *InMemoryStore) Query(_ context.Context, filter models.Filter) ([]*models.Candidate, error) {
	defer s.metrics.ObserveStore("memory", "query", time.Now())

	s.indexMu.RLock()
	var ids []string
	if filter.SearchID != "" {
		ids = append(ids, s.bySearch[filter.SearchID]...)
	} else {
		ids = append(ids, s.order...)
	}
	s.indexMu.RUnlock()

	out := make([]*models.Candidate, 0, len(ids))
	for _, id := range ids {
		c, ok := s.load(id)
		if ok && filter.Matches(c) {
			out = append(out, c)
		}
	}
	s.metrics.ObserveQueryResults(len(out))
	return out, nil
}

func (s *InMemoryStore) CountBySearch(_ context.Context, searchID string) (int, error) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return len(s.bySearch[searchID]), nil
}
