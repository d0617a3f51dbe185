//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"scout/internal/candidate/models"
	"scout/internal/candidate/store"
	"scout/pkg/platform/sentinel"
	"scout/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB, nil)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "candidates"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := integrationCandidate("p1", "s1", 100, true)

	created, err := s.store.Upsert(ctx, c)
	s.Require().NoError(err)
	s.True(created)

	c.Title = "Renamed"
	created, err = s.store.Upsert(ctx, c)
	s.Require().NoError(err)
	s.False(created)

	found, err := s.store.FindByID(ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Renamed", found.Title)
	s.Equal(c.Properties, found.Properties)
	s.Equal(c.Verification, found.Verification)
	s.True(c.CreatedAt.Equal(found.CreatedAt))

	_, err = s.store.FindByID(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConflictAcrossSearches() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, integrationCandidate("p1", "s1", 0, false))
	s.Require().NoError(err)

	_, err = s.store.Upsert(ctx, integrationCandidate("p1", "s2", 0, false))
	s.ErrorIs(err, sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, "p1")
	s.Require().NoError(err)
	s.Equal("s1", found.SearchID)
}

func (s *PostgresStoreSuite) TestQueryOrderAndFilters() {
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

	n, err := s.store.CountBySearch(ctx, "s2")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresStoreSuite) TestConcurrentUpsertSameID() {
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := integrationCandidate("same", "s1", float64(i), false)
			c.Title = fmt.Sprintf("writer %d", i)
			created, err := s.store.Upsert(ctx, c)
			s.NoError(err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, createdCount)
	n, err := s.store.CountBySearch(ctx, "s1")
	s.Require().NoError(err)
	s.Equal(1, n)
}
