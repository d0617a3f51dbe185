package handler

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"scout/internal/candidate/models"
	dErrors "scout/pkg/domain-errors"
)

// ListQuery holds the query parameters of GET /candidates.
type ListQuery struct {
	SearchID     string
	MinScore     *float64
	VerifiedOnly bool
}

// ParseListQuery reads and validates search_id, min_score and verified_only.
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{SearchID: strings.TrimSpace(values.Get("search_id"))}

	if raw := strings.TrimSpace(values.Get("min_score")); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(score) {
			return ListQuery{}, dErrors.New(dErrors.CodeValidation, "min_score must be a number")
		}
		if score < 0 || score > 100 {
			return ListQuery{}, dErrors.New(dErrors.CodeValidation, "min_score must be between 0 and 100")
		}
		q.MinScore = &score
	}

	if raw := strings.TrimSpace(values.Get("verified_only")); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return ListQuery{}, dErrors.New(dErrors.CodeValidation, "verified_only must be true or false")
		}
		q.VerifiedOnly = verified
	}
	return q, nil
}

// Filter converts the query into a store filter.
func (q ListQuery) Filter() models.Filter {
	return models.Filter{SearchID: q.SearchID, MinScore: q.MinScore, VerifiedOnly: q.VerifiedOnly}
}
