package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"scout/internal/search/models"
	"scout/pkg/platform/sentinel"
)

const (
	searchKeyPrefix = "scout:search:"
	searchOrderKey  = "scout:searches"
	activeSetKey    = "scout:searches:active"
)

// claimSearch writes a new search document together with its order entry
// and, for running searches, its active-set membership. Returns 0 when the
// id already exists.
//
// KEYS: document, order list, active set. ARGV: payload, id, "1" if active.
var claimSearch = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
if ARGV[3] == '1' then
	redis.call('SADD', KEYS[3], ARGV[2])
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// RedisStore keeps each search as a JSON document, a creation-order list and
// a set of ids that are not yet terminal.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed search store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func searchKey(id string) string { return searchKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, search *models.Search) error {
	payload, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}
	active := "0"
	if !search.IsTerminal() {
		active = "1"
	}
	created, err := claimSearch.Run(ctx, s.client,
		[]string{searchKey(search.ID), searchOrderKey, activeSetKey},
		payload, search.ID, active,
	).Int()
	if err != nil {
		return fmt.Errorf("create search: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("search %s already exists: %w", search.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, search *models.Search) error {
	payload, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}
	updated, err := s.client.SetXX(ctx, searchKey(search.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("update search: %w", err)
	}
	if !updated {
		return sentinel.ErrNotFound
	}
	if search.IsTerminal() {
		if err := s.client.SRem(ctx, activeSetKey, search.ID).Err(); err != nil {
			return fmt.Errorf("deindex search: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Search, error) {
	raw, err := s.client.Get(ctx, searchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get search: %w", err)
	}
	return decodeSearch(raw)
}

func (s *RedisStore) List(ctx context.Context) ([]*models.Search, error) {
	return s.load(ctx, func(*models.Search) bool { return true })
}

// ListActive filters the creation-order list through the active set so the
// result keeps creation order.
func (s *RedisStore) ListActive(ctx context.Context) ([]*models.Search, error) {
	active, err := s.client.SMembersMap(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read active searches: %w", err)
	}
	if len(active) == 0 {
		return []*models.Search{}, nil
	}
	return s.load(ctx, func(search *models.Search) bool {
		_, ok := active[search.ID]
		return ok && !search.IsTerminal()
	})
}

func (s *RedisStore) load(ctx context.Context, keep func(*models.Search) bool) ([]*models.Search, error) {
	ids, err := s.client.LRange(ctx, searchOrderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read search index: %w", err)
	}
	out := make([]*models.Search, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = searchKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load searches: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		search, err := decodeSearch([]byte(raw))
		if err != nil {
			return nil, err
		}
		if keep(search) {
			out = append(out, search)
		}
	}
	return out, nil
}

func decodeSearch(raw []byte) (*models.Search, error) {
	var search models.Search
	if err := json.Unmarshal(raw, &search); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	return &search, nil
}
