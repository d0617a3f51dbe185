//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scout/internal/search/models"
	"scout/internal/search/store"
	"scout/pkg/platform/sentinel"
	"scout/pkg/testutil/containers"
)

// storeContract runs the same behavioural checks against any backend.
type storeContract struct {
	suite.Suite
	store store.Store
	reset func()
}

func (s *storeContract) SetupTest() {
	s.reset()
}

func contractSearch(id string, created time.Time) *models.Search {
	return models.NewSearch(id, models.Spec{
		Query:          "Senior ML Engineers",
		EntityKind:     models.EntityPerson,
		Criteria:       []string{"5+ years ML experience"},
		RequestedCount: 10,
	}, created)
}

func (s *storeContract) TestLifecycleRoundTrip() {
	ctx := context.Background()
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	search := contractSearch("s-1", created)
	s.Require().NoError(s.store.Create(ctx, search))
	s.ErrorIs(s.store.Create(ctx, contractSearch("s-1", created)), sentinel.ErrConflict)

	s.Require().NoError(search.Start("job-1", created.Add(time.Second)))
	eta := 30
	search.RecordProgress(3, 30, &eta, created.Add(2*time.Second))
	s.Require().NoError(s.store.Update(ctx, search))

	found, err := s.store.FindByID(ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(search, found)

	s.ErrorIs(s.store.Update(ctx, contractSearch("ghost", created)), sentinel.ErrNotFound)
	_, err = s.store.FindByID(ctx, "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContract) TestActiveListing() {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "a", "c"} {
		s.Require().NoError(s.store.Create(ctx, contractSearch(id, now)))
	}
	done, err := s.store.FindByID(ctx, "a")
	s.Require().NoError(err)
	s.Require().NoError(done.Fail(models.FailureTimeout, "timed out", now))
	s.Require().NoError(s.store.Update(ctx, done))

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"b", "a", "c"}, ids(all))

	active, err := s.store.ListActive(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"b", "c"}, ids(active))
}

func ids(searches []*models.Search) []string {
	out := make([]string, 0, len(searches))
	for _, s := range searches {
		out = append(out, s.ID)
	}
	return out
}

type RedisSearchStoreSuite struct {
	storeContract
	redis *containers.RedisContainer
}

func TestRedisSearchStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSearchStoreSuite))
}

func (s *RedisSearchStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
	s.reset = func() { s.Require().NoError(s.redis.FlushAll(context.Background())) }
}

func (s *RedisSearchStoreSuite) TestFailedIndexingLeavesNoDocument() {
	ctx := context.Background()
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.redis.Client.Set(ctx, "scout:searches", "not-a-list", 0).Err())

	s.Require().Error(s.store.Create(ctx, contractSearch("s1", created)))
	_, err := s.store.FindByID(ctx, "s1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.redis.Client.Del(ctx, "scout:searches").Err())
	s.Require().NoError(s.store.Create(ctx, contractSearch("s1", created)))
	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("s1", all[0].ID)
}

type PostgresSearchStoreSuite struct{ storeContract }

func TestPostgresSearchStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSearchStoreSuite))
}

func (s *PostgresSearchStoreSuite) SetupSuite() {
	pg := containers.GetManager().GetPostgres(s.T())
	pgStore := store.NewPostgres(pg.DB)
	s.Require().NoError(pgStore.EnsureSchema(context.Background()))
	s.store = pgStore
	s.reset = func() { s.Require().NoError(pg.Truncate(context.Background(), "searches")) }
}
