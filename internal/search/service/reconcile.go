package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cmodels "scout/internal/candidate/models"
	"scout/internal/candidate/scoring"
	"scout/internal/events"
	"scout/internal/gateway"
	"scout/internal/search/models"
	dErrors "scout/pkg/domain-errors"
	"scout/pkg/platform/sentinel"
)

// item outcomes, as counted by metrics
const (
	itemCreated   = "created"
	itemUpdated   = "updated"
	itemUnchanged = "unchanged"
	itemMalformed = "malformed"
	itemConflict  = "conflict"
)

// progress stays below this until the provider reports the job done
const maxRunningPercent = 99

// Reconcile brings a search up to date with the provider: it enforces the
// wall-clock budget, fetches the job, merges its items into the candidate
// store and applies the resulting progress and status. Terminal searches are
// returned as they are. Calls for the same search never interleave.
func (s *Service) Reconcile(ctx context.Context, id string) (*models.Search, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "search.reconcile", trace.WithAttributes(attribute.String("search.id", id)))
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	search, err := s.load(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if search.IsTerminal() {
		return search, nil
	}

	result, err := s.reconcile(ctx, search)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveReconcile("error", start)
		return nil, err
	case result.Status == models.StatusFailed:
		s.metrics.ObserveReconcile("failed", start)
	default:
		s.metrics.ObserveReconcile("ok", start)
	}
	span.SetAttributes(
		attribute.String("search.status", string(result.Status)),
		attribute.Int("search.total_found", result.TotalFound),
	)
	return result, nil
}

func (s *Service) reconcile(ctx context.Context, search *models.Search) (*models.Search, error) {
	now := s.now()
	if !now.Before(search.Deadline(s.cfg.Timeout)) {
		return s.fail(ctx, search, models.FailureTimeout, timeoutMessage(s.cfg.Timeout), true)
	}
	if search.ExternalJobRef == "" {
		return search, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	result, err := s.gateway.Fetch(fetchCtx, gateway.JobRef(search.ExternalJobRef))
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// the caller went away; the search itself is fine
			return nil, dErrors.Wrap(ctxErr, dErrors.CodeUnavailable, "reconciliation interrupted")
		}
		if errors.Is(err, gateway.ErrCircuitOpen) {
			// nothing reached the provider; retry on a later pass
			s.logger.WarnContext(ctx, "provider circuit open, reconciliation deferred", "search_id", search.ID)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "search provider temporarily unavailable")
		}
		kind := models.FailureUpstreamUnavailable
		if gateway.IsPermanent(err) {
			kind = models.FailureUpstreamRejected
		}
		s.logger.WarnContext(ctx, "provider fetch failed",
			"search_id", search.ID,
			"category", gateway.CategoryOf(err),
			"error", err,
		)
		return s.fail(ctx, search, kind, err.Error(), false)
	}

	requested := jobSpec(search).AllCriteria()
	for _, item := range result.Items {
		outcome, err := s.mergeItem(ctx, search, item, requested, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store candidates")
		}
		s.metrics.IncrementItem(outcome)
	}

	found, err := s.candidates.CountBySearch(ctx, search.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count candidates")
	}
	var secondsLeft *int
	if result.Progress != nil {
		secondsLeft = result.Progress.TimeLeftSeconds
	}
	changed := search.RecordProgress(found, progressPercent(result, found, search.Spec.RequestedCount), secondsLeft, now)

	switch result.Status {
	case gateway.StatusDone:
		if err := search.Complete(now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete search")
		}
	case gateway.StatusErrored:
		message := result.Message
		if message == "" {
			message = "provider reported the job as errored"
		}
		return s.fail(ctx, search, models.FailureProviderErrored, message, false)
	}

	if !changed && !search.IsTerminal() {
		return search, nil
	}
	if err := s.searches.Update(ctx, search); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save search")
	}
	if search.IsTerminal() {
		s.finished(ctx, search)
	} else {
		s.publish(ctx, events.SearchProgressed, search)
	}
	return search.Clone(), nil
}

// fail persists a terminal failure. When cancelJob is set the provider is
// asked to stop the job as well.
func (s *Service) fail(ctx context.Context, search *models.Search, kind models.FailureKind, message string, cancelJob bool) (*models.Search, error) {
	if err := search.Fail(kind, message, s.now()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fail search")
	}
	if err := s.searches.Update(ctx, search); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save search")
	}
	s.finished(ctx, search)
	if cancelJob {
		s.cancelUpstream(context.WithoutCancel(ctx), search)
	}
	return search.Clone(), nil
}

// mergeItem folds one provider item into the candidate store.
func (s *Service) mergeItem(ctx context.Context, search *models.Search, item gateway.Item, requested []string, now time.Time) (string, error) {
	if strings.TrimSpace(item.ID) == "" {
		s.logger.WarnContext(ctx, "skipping provider item without id",
			"search_id", search.ID,
			"url", item.URL,
		)
		return itemMalformed, nil
	}

	verification := scoring.Normalize(item.Verification, requested)
	obs := cmodels.Observation{
		ID:           item.ID,
		SourceURL:    item.URL,
		Title:        item.Title,
		Verification: verification,
		Score:        scoring.Score(verification),
		Properties:   item.Properties,
		Enrichments:  item.Enrichments,
	}

	existing, err := s.candidates.FindByID(ctx, item.ID)
	var candidate *cmodels.Candidate
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		candidate = cmodels.NewCandidate(search.ID, obs, now)
	case err != nil:
		return "", err
	case existing.SearchID != search.ID:
		s.logConflict(ctx, search.ID, existing.SearchID, item.ID)
		return itemConflict, nil
	default:
		if !existing.Merge(obs, now) {
			return itemUnchanged, nil
		}
		candidate = existing
	}

	created, err := s.candidates.Upsert(ctx, candidate)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.logConflict(ctx, search.ID, "", item.ID)
		return itemConflict, nil
	case err != nil:
		return "", err
	case created:
		return itemCreated, nil
	default:
		return itemUpdated, nil
	}
}

func (s *Service) logConflict(ctx context.Context, searchID, ownerID, candidateID string) {
	s.logger.WarnContext(ctx, "skipping candidate owned by another search",
		"search_id", searchID,
		"owner_search_id", ownerID,
		"candidate_id", candidateID,
	)
}

// progressPercent prefers the provider's own completion figure and falls
// back to found/requested. It is capped below 100 until the job is done.
func progressPercent(result *gateway.FetchResult, found, requested int) float64 {
	if result.Status == gateway.StatusDone {
		return 100
	}
	var percent float64
	switch {
	case result.Progress != nil && result.Progress.CompletionPercent != nil:
		percent = *result.Progress.CompletionPercent
	case requested > 0:
		percent = 100 * float64(found) / float64(requested)
	}
	return min(percent, maxRunningPercent)
}
