package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scout/internal/candidate/models"
	"scout/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newCandidate(id, searchID string, score *float64, passed bool) *models.Candidate {
	c := models.NewCandidate(searchID, models.Observation{ID: id, Title: "Candidate " + id}, time.Now())
	c.Score = score
	if score != nil {
		c.Verification = &models.Verification{Passed: passed}
	}
	return c
}

func scorePtr(f float64) *float64 { return &f }

func (s *InMemoryStoreSuite) TestUpsert() {
	s.Run("creates then updates", func() {
		c := newCandidate("c1", "s1", nil, false)
		created, err := s.store.Upsert(s.ctx, c)
		s.Require().NoError(err)
		s.True(created)

		c.Title = "Updated"
		created, err = s.store.Upsert(s.ctx, c)
		s.Require().NoError(err)
		s.False(created)

		found, err := s.store.FindByID(s.ctx, "c1")
		s.Require().NoError(err)
		s.Equal("Updated", found.Title)

		n, err := s.store.CountBySearch(s.ctx, "s1")
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("rejects a candidate owned by another search", func() {
		_, err := s.store.Upsert(s.ctx, newCandidate("shared", "s1", nil, false))
		s.Require().NoError(err)

		_, err = s.store.Upsert(s.ctx, newCandidate("shared", "s2", nil, false))
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		found, err := s.store.FindByID(s.ctx, "shared")
		s.Require().NoError(err)
		s.Equal("s1", found.SearchID)
	})

	s.Run("requires an id", func() {
		_, err := s.store.Upsert(s.ctx, &models.Candidate{SearchID: "s1"})
		s.Error(err)
	})
}

func (s *InMemoryStoreSuite) TestReturnedCandidatesAreCopies() {
	c := newCandidate("c1", "s1", scorePtr(50), false)
	_, err := s.store.Upsert(s.ctx, c)
	s.Require().NoError(err)

	c.Title = "mutated after upsert"
	found, err := s.store.FindByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal("Candidate c1", found.Title)

	*found.Score = 0
	again, err := s.store.FindByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(50.0, *again.Score)
}

func (s *InMemoryStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestQueryKeepsInsertionOrder() {
	for _, id := range []string{"z", "a", "m", "b"} {
		_, err := s.store.Upsert(s.ctx, newCandidate(id, "s1", nil, false))
		s.Require().NoError(err)
	}
	_, err := s.store.Upsert(s.ctx, newCandidate("other", "s2", nil, false))
	s.Require().NoError(err)
	// updates never move a candidate
	_, err = s.store.Upsert(s.ctx, newCandidate("z", "s1", scorePtr(10), false))
	s.Require().NoError(err)

	scoped, err := s.store.Query(s.ctx, models.Filter{SearchID: "s1"})
	s.Require().NoError(err)
	s.Equal([]string{"z", "a", "m", "b"}, ids(scoped))

	all, err := s.store.Query(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Equal([]string{"z", "a", "m", "b", "other"}, ids(all))

	none, err := s.store.Query(s.ctx, models.Filter{SearchID: "unknown"})
	s.Require().NoError(err)
	s.Empty(none)
}

// TestQueryFilterConjunction checks against a random population that the
// result is exactly the subset satisfying every predicate, in order.
func (s *InMemoryStoreSuite) TestQueryFilterConjunction() {
	rng := rand.New(rand.NewPCG(42, 1))
	var population []*models.Candidate
	for i := range 300 {
		var score *float64
		if rng.IntN(5) > 0 {
			score = scorePtr(float64(rng.IntN(1001)) / 10)
		}
		c := newCandidate(fmt.Sprintf("c%03d", i), fmt.Sprintf("s%d", rng.IntN(3)), score, rng.IntN(2) == 0)
		population = append(population, c)
		_, err := s.store.Upsert(s.ctx, c)
		s.Require().NoError(err)
	}

	filters := []models.Filter{
		{MinScore: scorePtr(70), VerifiedOnly: true},
		{SearchID: "s1", MinScore: scorePtr(70), VerifiedOnly: true},
		{SearchID: "s2", MinScore: scorePtr(0)},
		{VerifiedOnly: true},
		{MinScore: scorePtr(100)},
	}
	for _, f := range filters {
		want := []string{}
		for _, c := range population {
			matches := (f.SearchID == "" || c.SearchID == f.SearchID) &&
				(f.MinScore == nil || (c.Score != nil && *c.Score >= *f.MinScore)) &&
				(!f.VerifiedOnly || (c.Verification != nil && c.Verification.Passed))
			if matches {
				want = append(want, c.ID)
			}
		}
		got, err := s.store.Query(s.ctx, f)
		s.Require().NoError(err)
		s.Equal(want, ids(got), "filter %+v", f)
	}
}

func (s *InMemoryStoreSuite) TestConcurrentUpserts() {
	const searches = 8
	const perSearch = 50

	var wg sync.WaitGroup
	for sIdx := range searches {
		for cIdx := range perSearch {
			wg.Add(2)
			// two writers race on every id; exactly one of them creates it
			for range 2 {
				go func() {
					defer wg.Done()
					c := newCandidate(fmt.Sprintf("s%d-c%d", sIdx, cIdx), fmt.Sprintf("s%d", sIdx), nil, false)
					_, err := s.store.Upsert(s.ctx, c)
					s.NoError(err)
				}()
			}
		}
	}
	wg.Wait()

	all, err := s.store.Query(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, searches*perSearch)
	for sIdx := range searches {
		n, err := s.store.CountBySearch(s.ctx, fmt.Sprintf("s%d", sIdx))
		s.Require().NoError(err)
		s.Equal(perSearch, n)
	}
}

func ids(cs []*models.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
