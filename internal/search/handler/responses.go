package handler

import (
	"time"

	chandler "scout/internal/candidate/handler"
	cmodels "scout/internal/candidate/models"
	"scout/internal/search/models"
)

// CreateSearchResponse is returned by POST /search.
type CreateSearchResponse struct {
	SearchID  string    `json:"search_id"`
	Status    string    `json:"status"`
	Query     string    `json:"query"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

// StatusResponse describes a search's progress.
type StatusResponse struct {
	SearchID               string     `json:"search_id"`
	Status                 string     `json:"status"`
	Query                  string     `json:"query"`
	EntityKind             string     `json:"entity"`
	Criteria               []string   `json:"criteria"`
	TotalRequested         int        `json:"total_requested"`
	TotalFound             int        `json:"total_found"`
	ProgressPercent        float64    `json:"progress_percent"`
	EstimatedTimeRemaining *int       `json:"estimated_time_remaining,omitempty"`
	Error                  string     `json:"error,omitempty"`
	FailureKind            string     `json:"failure_kind,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// DetailResponse is returned by GET /search/{id}: the status plus every
// candidate found so far.
type DetailResponse struct {
	StatusResponse
	Candidates []chandler.CandidateResponse `json:"candidates"`
}

// ListResponse is returned by GET /search: every search in creation order,
// each in the detail shape.
type ListResponse []DetailResponse

func toCreateResponse(s *models.Search) CreateSearchResponse {
	message := "Search started"
	if s.Failure != nil {
		message = "Search could not be started: " + s.Failure.Message
	}
	return CreateSearchResponse{
		SearchID:  s.ID,
		Status:    string(s.Status),
		Query:     s.Spec.Query,
		Count:     s.Spec.RequestedCount,
		CreatedAt: s.CreatedAt,
		Message:   message,
	}
}

func toStatusResponse(s *models.Search) StatusResponse {
	criteria := s.Spec.Criteria
	if criteria == nil {
		criteria = []string{}
	}
	resp := StatusResponse{
		SearchID:               s.ID,
		Status:                 string(s.Status),
		Query:                  s.Spec.Query,
		EntityKind:             string(s.Spec.EntityKind),
		Criteria:               criteria,
		TotalRequested:         s.Spec.RequestedCount,
		TotalFound:             s.TotalFound,
		ProgressPercent:        s.ProgressPercent,
		EstimatedTimeRemaining: s.EstimatedSecondsLeft,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
		CompletedAt:            s.CompletedAt,
	}
	if s.Failure != nil {
		resp.Error = s.Failure.Message
		resp.FailureKind = string(s.Failure.Kind)
	}
	return resp
}

func toDetailResponse(s *models.Search, candidates []*cmodels.Candidate) DetailResponse {
	return DetailResponse{
		StatusResponse: toStatusResponse(s),
		Candidates:     chandler.FromCandidates(candidates),
	}
}

func toListResponse(searches []*models.Search, candidates map[string][]*cmodels.Candidate) ListResponse {
	out := make(ListResponse, 0, len(searches))
	for _, s := range searches {
		out = append(out, toDetailResponse(s, candidates[s.ID]))
	}
	return out
}
