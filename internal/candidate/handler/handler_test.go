package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"scout/internal/candidate/handler/mocks"
	"scout/internal/candidate/models"
	dErrors "scout/pkg/domain-errors"
	"scout/pkg/testutil"
)

type CandidateHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestCandidateHandlerSuite(t *testing.T) {
	suite.Run(t, new(CandidateHandlerSuite))
}

func (s *CandidateHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func sampleCandidate() *models.Candidate {
	score := 100.0
	c := models.NewCandidate("search-1", models.Observation{
		ID:         "cand-1",
		SourceURL:  "https://example.com/alice",
		Title:      "Alice",
		Properties: models.Properties{"location": models.String("Oslo")},
	}, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	c.Verification = &models.Verification{Passed: true, CriteriaResults: []models.CriterionResult{{Description: "ML", Passed: true}}}
	c.Score = &score
	return c
}

func (s *CandidateHandlerSuite) TestHandleList() {
	s.Run("passes parsed filters to the service", func() {
		minScore := 70.0
		s.service.EXPECT().
			ListCandidates(gomock.Any(), models.Filter{SearchID: "search-1", MinScore: &minScore, VerifiedOnly: true}).
			Return([]*models.Candidate{sampleCandidate()}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
			"/candidates?search_id=search-1&min_score=70&verified_only=true"))

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
		s.Equal(1, resp.Total)
		s.Require().Len(resp.Candidates, 1)
		got := resp.Candidates[0]
		s.Equal("cand-1", got.ID)
		s.Equal("https://example.com/alice", got.URL)
		s.True(got.Verified)
		s.Equal(100.0, *got.Score)
	})

	s.Run("empty result is an empty list", func() {
		s.service.EXPECT().ListCandidates(gomock.Any(), models.Filter{}).Return(nil, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/candidates"))
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"total":0,"candidates":[]}`, rr.Body.String())
	})

	s.Run("rejects invalid query parameters", func() {
		for _, query := range []string{"min_score=abc", "min_score=-1", "min_score=100.5", "min_score=NaN", "min_score=nan", "min_score=Inf", "min_score=-Inf", "verified_only=maybe"} {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/candidates?"+query))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		}
	})

	s.Run("internal errors hide details", func() {
		s.service.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to list candidates"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/candidates"))
		testutil.AssertInternalError(s.T(), rr, "db down")
	})
}

func (s *CandidateHandlerSuite) TestHandleGet() {
	s.Run("returns the candidate", func() {
		s.service.EXPECT().GetCandidate(gomock.Any(), "cand-1").Return(sampleCandidate(), nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/candidates/cand-1"))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[CandidateResponse](s.T(), rr)
		s.Equal("search-1", resp.SearchID)
		s.Equal(models.String("Oslo"), resp.Properties["location"])
	})

	s.Run("unknown id is 404", func() {
		s.service.EXPECT().GetCandidate(gomock.Any(), "nope").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "candidate not found"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/candidates/nope"))
		s.Equal(http.StatusNotFound, rr.Code)
	})
}

func TestParseListQuery(t *testing.T) {
	q, err := ParseListQuery(url.Values{"search_id": {"  s1 "}, "min_score": {"0"}, "verified_only": {"false"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.SearchID != "s1" || q.MinScore == nil || *q.MinScore != 0 || q.VerifiedOnly {
		t.Fatalf("unexpected query: %+v", q)
	}

	boundary, err := ParseListQuery(url.Values{"min_score": {"100"}})
	if err != nil || *boundary.MinScore != 100 {
		t.Fatalf("expected 100 to be accepted, got %+v %v", boundary, err)
	}

	for _, raw := range []string{"NaN", "+Inf", "-Inf"} {
		if _, err := ParseListQuery(url.Values{"min_score": {raw}}); !dErrors.Is(err, dErrors.CodeValidation) {
			t.Fatalf("expected min_score=%s to be rejected, got %v", raw, err)
		}
	}
}

var _ Service = (*mocks.MockService)(nil)
