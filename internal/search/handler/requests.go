package handler

import (
	"strings"
	"unicode/utf8"

	"scout/internal/search/models"
	dErrors "scout/pkg/domain-errors"
)

// CreateSearchRequest is the body of POST /search.
type CreateSearchRequest struct {
	Query           string   `json:"query"`
	Count           int      `json:"count"`
	Entity          string   `json:"entity"`
	Criteria        []string `json:"criteria"`
	ExcludeCriteria []string `json:"exclude_criteria"`
	Enrichments     []string `json:"enrichments"`
}

// Validate trims the query and rejects requests the lifecycle manager would
// refuse anyway. Count clamping and list cleanup happen in the service.
func (r *CreateSearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return dErrors.New(dErrors.CodeValidation, "query is required")
	}
	if utf8.RuneCountInString(r.Query) > models.MaxQueryLength {
		return dErrors.New(dErrors.CodeValidation, "query must be at most 1000 characters")
	}
	if r.Count < 0 {
		return dErrors.New(dErrors.CodeValidation, "count must not be negative")
	}
	if _, err := models.ParseEntityKind(r.Entity); err != nil {
		return err
	}
	return nil
}

// Spec converts the request into a search spec.
func (r *CreateSearchRequest) Spec() models.Spec {
	return models.Spec{
		Query:           r.Query,
		EntityKind:      models.EntityKind(r.Entity),
		Criteria:        r.Criteria,
		ExcludeCriteria: r.ExcludeCriteria,
		Enrichments:     r.Enrichments,
		RequestedCount:  r.Count,
	}
}
