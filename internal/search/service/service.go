// Package service is the search lifecycle manager. It registers searches,
// submits them to the provider, and reconciles provider state into the
// search and candidate stores on demand.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	cmodels "scout/internal/candidate/models"
	"scout/internal/events"
	"scout/internal/gateway"
	"scout/internal/search/metrics"
	"scout/internal/search/models"
	dErrors "scout/pkg/domain-errors"
	"scout/pkg/platform/sentinel"
)

const (
	DefaultTimeout     = time.Hour
	DefaultCallTimeout = 30 * time.Second

	// reconcileShards bounds the lock table; two searches sharing a shard
	// reconcile one after the other.
	reconcileShards = 64
)

// SearchStore persists searches.
type SearchStore interface {
	Create(ctx context.Context, s *models.Search) error
	Update(ctx context.Context, s *models.Search) error
	FindByID(ctx context.Context, id string) (*models.Search, error)
	List(ctx context.Context) ([]*models.Search, error)
	ListActive(ctx context.Context) ([]*models.Search, error)
}

// CandidateStore is the write side of the candidate record store.
type CandidateStore interface {
	Upsert(ctx context.Context, c *cmodels.Candidate) (bool, error)
	FindByID(ctx context.Context, id string) (*cmodels.Candidate, error)
	Query(ctx context.Context, filter cmodels.Filter) ([]*cmodels.Candidate, error)
	CountBySearch(ctx context.Context, searchID string) (int, error)
}

// Config holds lifecycle limits.
type Config struct {
	CountPolicy models.CountPolicy
	// Timeout is the wall-clock budget of a search from creation.
	Timeout time.Duration
	// CallTimeout bounds one provider operation including its retries.
	// Per-attempt limits belong to the gateway.
	CallTimeout time.Duration
}

// Service manages the search lifecycle.
type Service struct {
	searches   SearchStore
	candidates CandidateStore
	gateway    gateway.Gateway
	cfg        Config

	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string

	locks [reconcileShards]sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher emits lifecycle events after each persisted change.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New constructs a Service. Zero Config durations take their defaults.
func New(searches SearchStore, candidates CandidateStore, gw gateway.Gateway, cfg Config, opts ...Option) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	s := &Service{
		searches:   searches,
		candidates: candidates,
		gateway:    gw,
		cfg:        cfg,
		logger:     slog.Default(),
		publisher:  events.Noop{},
		tracer:     otel.Tracer("scout/search"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates spec, registers the search as pending and submits it to
// the provider. A failed submission is not an error for the caller: the
// search is returned in the failed state with the reason attached.
func (s *Service) Create(ctx context.Context, spec models.Spec) (*models.Search, error) {
	normalized, err := spec.Normalize(s.cfg.CountPolicy)
	if err != nil {
		return nil, err
	}

	// the search outlives the request that created it
	ctx = context.WithoutCancel(ctx)

	search := models.NewSearch(s.newID(), normalized, s.now())
	unlock := s.lock(search.ID)
	defer unlock()

	if err := s.searches.Create(ctx, search); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create search")
	}
	s.logger.InfoContext(ctx, "search created",
		"search_id", search.ID,
		"entity_kind", search.Spec.EntityKind,
		"requested_count", search.Spec.RequestedCount,
		"criteria", len(search.Spec.Criteria),
	)

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	ref, submitErr := s.gateway.Submit(submitCtx, jobSpec(search))
	cancel()

	if submitErr != nil {
		kind := models.FailureUpstreamUnavailable
		if gateway.IsPermanent(submitErr) {
			kind = models.FailureUpstreamRejected
		}
		if err := search.Fail(kind, submitErr.Error(), s.now()); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record submission failure")
		}
		s.logger.WarnContext(ctx, "search submission failed",
			"search_id", search.ID,
			"kind", kind,
			"error", submitErr,
		)
	} else if err := search.Start(ref.String(), s.now()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start search")
	}

	if err := s.searches.Update(ctx, search); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save search")
	}
	s.metrics.IncrementCreated(string(search.Status))
	s.publish(ctx, events.SearchCreated, search)
	if search.IsTerminal() {
		s.finished(ctx, search)
	}
	return search.Clone(), nil
}

// Get returns a search without reconciling it.
func (s *Service) Get(ctx context.Context, id string) (*models.Search, error) {
	return s.load(ctx, id)
}

// List returns every search in creation order.
func (s *Service) List(ctx context.Context) ([]*models.Search, error) {
	out, err := s.searches.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list searches")
	}
	return out, nil
}

// ListActive returns the searches that still need reconciling.
func (s *Service) ListActive(ctx context.Context) ([]*models.Search, error) {
	out, err := s.searches.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active searches")
	}
	return out, nil
}

// Candidates returns the candidates found so far for a search.
func (s *Service) Candidates(ctx context.Context, searchID string) ([]*cmodels.Candidate, error) {
	out, err := s.candidates.Query(ctx, cmodels.Filter{SearchID: searchID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return out, nil
}

// Cancel fails a running search with kind cancelled and asks the provider to
// stop. Terminal searches are returned unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Search, error) {
	unlock := s.lock(id)
	defer unlock()

	search, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if search.IsTerminal() {
		return search, nil
	}

	ctx = context.WithoutCancel(ctx)
	if err := search.Fail(models.FailureCancelled, "search cancelled by caller", s.now()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel search")
	}
	if err := s.searches.Update(ctx, search); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save search")
	}
	s.finished(ctx, search)
	s.cancelUpstream(ctx, search)
	return search.Clone(), nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Search, error) {
	search, err := s.searches.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "search not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load search")
	}
	return search, nil
}

// lock serializes lifecycle changes of one search.
func (s *Service) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%reconcileShards]
	mu.Lock()
	return mu.Unlock
}

// finished records a terminal transition that has already been persisted.
func (s *Service) finished(ctx context.Context, search *models.Search) {
	kind := ""
	eventType := events.SearchCompleted
	if search.Failure != nil {
		kind = string(search.Failure.Kind)
		eventType = events.SearchFailed
	}
	s.metrics.IncrementFinished(string(search.Status), kind)
	s.logger.InfoContext(ctx, "search finished",
		"search_id", search.ID,
		"status", search.Status,
		"failure_kind", kind,
		"total_found", search.TotalFound,
	)
	s.publish(ctx, eventType, search)
}

// cancelUpstream tells the provider to stop a job. Failures are logged only;
// the search is already terminal on our side.
func (s *Service) cancelUpstream(ctx context.Context, search *models.Search) {
	if search.ExternalJobRef == "" {
		return
	}
	cancelCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := s.gateway.Cancel(cancelCtx, gateway.JobRef(search.ExternalJobRef)); err != nil {
		s.logger.WarnContext(ctx, "failed to cancel provider job",
			"search_id", search.ID,
			"job_ref", search.ExternalJobRef,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, t events.Type, search *models.Search) {
	e := events.Event{
		Type:            t,
		SearchID:        search.ID,
		Status:          string(search.Status),
		TotalFound:      search.TotalFound,
		ProgressPercent: search.ProgressPercent,
		OccurredAt:      search.UpdatedAt,
	}
	if search.Failure != nil {
		e.FailureKind = string(search.Failure.Kind)
		e.Message = search.Failure.Message
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish search event",
			"search_id", search.ID,
			"type", t,
			"error", err,
		)
	}
}

func jobSpec(search *models.Search) gateway.JobSpec {
	return gateway.JobSpec{
		SearchID:        search.ID,
		Query:           search.Spec.Query,
		EntityKind:      string(search.Spec.EntityKind),
		Criteria:        search.Spec.Criteria,
		ExcludeCriteria: search.Spec.ExcludeCriteria,
		Enrichments:     search.Spec.Enrichments,
		Count:           search.Spec.RequestedCount,
	}
}

func timeoutMessage(budget time.Duration) string {
	return fmt.Sprintf("search did not finish within %s", budget)
}
