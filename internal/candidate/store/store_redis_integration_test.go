//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scout/internal/candidate/models"
	"scout/internal/candidate/store"
	"scout/pkg/platform/sentinel"
	"scout/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client, nil)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func integrationCandidate(id, searchID string, score float64, passed bool) *models.Candidate {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := models.NewCandidate(searchID, models.Observation{
		ID:         id,
		SourceURL:  "https://example.com/" + id,
		Title:      "Candidate " + id,
		Properties: models.Properties{"location": models.String("Lisbon")},
	}, now)
	c.Verification = &models.Verification{Passed: passed, CriteriaResults: []models.CriterionResult{
		{Description: "criterion", Passed: passed, Reasoning: "because", References: []string{"https://ref"}},
	}}
	c.Score = &score
	return c
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := integrationCandidate("r1", "s1", 100, true)

	created, err := s.store.Upsert(ctx, c)
	s.Require().NoError(err)
	s.True(created)

	found, err := s.store.FindByID(ctx, "r1")
	s.Require().NoError(err)
	s.Equal(c, found)

	_, err = s.store.FindByID(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConflictAcrossSearches() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, integrationCandidate("r1", "s1", 0, false))
	s.Require().NoError(err)

	_, err = s.store.Upsert(ctx, integrationCandidate("r1", "s2", 0, false))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *RedisStoreSuite) TestQueryOrderAndFilters() {
	ctx := context.Background()
	s.Require().NoError(upsertAll(ctx, s.store,
		integrationCandidate("b", "s1", 100, true),
		integrationCandidate("a", "s1", 50, false),
		integrationCandidate("c", "s2", 90, true),
	))

	scoped, err := s.store.Query(ctx, models.Filter{SearchID: "s1"})
	s.Require().NoError(err)
	s.Equal([]string{"b", "a"}, candidateIDs(scoped))

	threshold := 60.0
	verified, err := s.store.Query(ctx, models.Filter{MinScore: &threshold, VerifiedOnly: true})
	s.Require().NoError(err)
	s.Equal([]string{"b", "c"}, candidateIDs(verified))

	n, err := s.store.CountBySearch(ctx, "s1")
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *RedisStoreSuite) TestConcurrentCreateIndexesOnce() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Upsert(ctx, integrationCandidate(fmt.Sprintf("c%d", i%5), "s1", 10, false))
			s.NoError(err)
		}()
	}
	wg.Wait()

	n, err := s.store.CountBySearch(ctx, "s1")
	s.Require().NoError(err)
	s.Equal(5, n)
}

func (s *RedisStoreSuite) TestFailedIndexingLeavesNoDocument() {
	ctx := context.Background()
	// a string under the index key makes RPUSH fail with WRONGTYPE
	s.Require().NoError(s.redis.Client.Set(ctx, "scout:candidates", "not-a-list", 0).Err())

	_, err := s.store.Upsert(ctx, integrationCandidate("r1", "s1", 10, false))
	s.Require().Error(err)
	_, err = s.store.FindByID(ctx, "r1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.redis.Client.Del(ctx, "scout:candidates").Err())
	created, err := s.store.Upsert(ctx, integrationCandidate("r1", "s1", 10, false))
	s.Require().NoError(err)
	s.True(created, "the id was never claimed")

	all, err := s.store.Query(ctx, models.Filter{})
	s.Require().NoError(err)
	s.Equal([]string{"r1"}, candidateIDs(all))
	n, err := s.store.CountBySearch(ctx, "s1")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func upsertAll(ctx context.Context, st store.Store, cs ...*models.Candidate) error {
	for _, c := range cs {
		if _, err := st.Upsert(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func candidateIDs(cs []*models.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
