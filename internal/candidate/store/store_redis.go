package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scout/internal/candidate/metrics"
	"scout/internal/candidate/models"
	"scout/pkg/platform/sentinel"
)

const (
	candidateKeyPrefix = "scout:candidate:"
	candidateOrderKey  = "scout:candidates"
	searchIndexPrefix  = "scout:search-candidates:"

	// MGET batch size when materializing query results
	fetchBatch = 200
)

// claimCandidate stores a new candidate document and appends its id to both
// indices in one step. Indices are written first so a failed push leaves no
// document behind. Returns 0 when the id already exists.
//
// KEYS: document, global index, search index. ARGV: payload, id.
var claimCandidate = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[2])
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// RedisStore keeps each candidate as a JSON document plus two list indices
// (global and per search) that record insertion order.
type RedisStore struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

// NewRedis constructs a Redis-backed candidate store.
func NewRedis(client *redis.Client, m *metrics.Metrics) *RedisStore {
	return &RedisStore{client: client, metrics: m}
}

func candidateKey(id string) string { return candidateKeyPrefix + id }
func searchIndexKey(searchID string) string { return searchIndexPrefix + searchID }

// Upsert claims new ids with a script so concurrent creators index a
// candidate exactly once and a document never exists without its index
// entries.
func (s *RedisStore) Upsert(ctx context.Context, c *models.Candidate) (bool, error) {
	if c == nil || c.ID == "" {
		return false, fmt.Errorf("candidate id is required")
	}
	defer s.metrics.ObserveStore("redis", "upsert", time.Now())

	payload, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("encode candidate: %w", err)
	}

	key := candidateKey(c.ID)
	created, err := claimCandidate.Run(ctx, s.client,
		[]string{key, candidateOrderKey, searchIndexKey(c.SearchID)},
		payload, c.ID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("create candidate: %w", err)
	}
	if created == 1 {
		s.metrics.IncrementUpsert(outcomeCreated)
		return true, nil
	}

	existing, err := s.get(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if existing.SearchID != c.SearchID {
		s.metrics.IncrementUpsert(outcomeConflict)
		return false, fmt.Errorf("candidate %s belongs to search %s: %w", c.ID, existing.SearchID, sentinel.ErrConflict)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return false, fmt.Errorf("update candidate: %w", err)
	}
	s.metrics.IncrementUpsert(outcomeUpdated)
	return false, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	defer s.metrics.ObserveStore("redis", "find", time.Now())
	return s.get(ctx, id)
}

func (s *RedisStore) get(ctx context.Context, id string) (*models.Candidate, error) {
	raw, err := s.client.Get(ctx, candidateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	var c models.Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode candidate %s: %w", id, err)
	}
	return &c, nil
}

func (s *RedisStore) Query(ctx context.Context, filter models.Filter) ([]*models.Candidate, error) {
	defer s.metrics.ObserveStore("redis", "query", time.Now())

	indexKey := candidateOrderKey
	if filter.SearchID != "" {
		indexKey = searchIndexKey(filter.SearchID)
	}
	ids, err := s.client.LRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read candidate index: %w", err)
	}

	out := make([]*models.Candidate, 0, len(ids))
	for start := 0; start < len(ids); start += fetchBatch {
		end := min(start+fetchBatch, len(ids))
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, candidateKey(id))
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("load candidates: %w", err)
		}
		for _, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var c models.Candidate
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				return nil, fmt.Errorf("decode candidate: %w", err)
			}
			if filter.Matches(&c) {
				out = append(out, &c)
			}
		}
	}
	s.metrics.ObserveQueryResults(len(out))
	return out, nil
}

func (s *RedisStore) CountBySearch(ctx context.Context, searchID string) (int, error) {
	n, err := s.client.LLen(ctx, searchIndexKey(searchID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return int(n), nil
}
