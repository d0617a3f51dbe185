// Package service answers read requests over the candidate record store.
// Reads never wait on in-flight searches; they serve whatever has been
// reconciled so far.
package service

import (
	"context"
	"errors"
	"log/slog"

	"scout/internal/candidate/models"
	dErrors "scout/pkg/domain-errors"
	"scout/pkg/platform/sentinel"
)

// CandidateStore is the read side of the candidate record store.
type CandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	Query(ctx context.Context, filter models.Filter) ([]*models.Candidate, error)
}

// Service exposes filtered candidate listings.
type Service struct {
	candidates CandidateStore
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service.
func New(candidates CandidateStore, opts ...Option) *Service {
	s := &Service{candidates: candidates, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCandidates returns every candidate matching all set filter fields, in
// insertion order.
func (s *Service) ListCandidates(ctx context.Context, filter models.Filter) ([]*models.Candidate, error) {
	if filter.MinScore != nil && (*filter.MinScore < 0 || *filter.MinScore > 100) {
		return nil, dErrors.New(dErrors.CodeValidation, "min_score must be between 0 and 100")
	}
	out, err := s.candidates.Query(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return out, nil
}

// GetCandidate returns one candidate by id.
func (s *Service) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	c, err := s.candidates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "candidate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}
	return c, nil
}
