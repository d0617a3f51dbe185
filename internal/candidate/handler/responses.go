package handler

import (
	"time"

	"scout/internal/candidate/models"
)

// CandidateResponse is the HTTP shape of a candidate.
type CandidateResponse struct {
	ID           string                    `json:"id"`
	SearchID     string                    `json:"search_id"`
	URL          string                    `json:"url"`
	Title        string                    `json:"title"`
	Verified     bool                      `json:"verified"`
	Score        *float64                  `json:"score,omitempty"`
	Verification *models.Verification      `json:"verification,omitempty"`
	Properties   models.Properties         `json:"properties"`
	Enrichments  []models.EnrichmentResult `json:"enrichments"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// ListResponse is the HTTP response for GET /candidates.
type ListResponse struct {
	Total      int                 `json:"total"`
	Candidates []CandidateResponse `json:"candidates"`
}

// FromCandidate converts a candidate into its response shape.
func FromCandidate(c *models.Candidate) CandidateResponse {
	props := c.Properties
	if props == nil {
		props = models.Properties{}
	}
	enrichments := c.Enrichments
	if enrichments == nil {
		enrichments = []models.EnrichmentResult{}
	}
	return CandidateResponse{
		ID:           c.ID,
		SearchID:     c.SearchID,
		URL:          c.SourceURL,
		Title:        c.Title,
		Verified:     c.IsVerified(),
		Score:        c.Score,
		Verification: c.Verification,
		Properties:   props,
		Enrichments:  enrichments,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// FromCandidates converts a slice, preserving order.
func FromCandidates(cs []*models.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromCandidate(c))
	}
	return out
}
