package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scout/internal/candidate/models"
	"scout/pkg/platform/httputil"
	"scout/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/candidate-mocks.go -package=mocks Service

// Service defines the candidate read operations.
type Service interface {
	ListCandidates(ctx context.Context, filter models.Filter) ([]*models.Candidate, error)
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
}

// Handler wires candidate endpoints to the candidate service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a candidate handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts candidate endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/candidates", h.HandleList)
	r.Get("/candidates/{id}", h.HandleGet)
}

// HandleList handles GET /candidates.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	query, err := ParseListQuery(r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid candidate query",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	candidates, err := h.service.ListCandidates(ctx, query.Filter())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list candidates",
			"request_id", requestID,
			"search_id", query.SearchID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Total:      len(candidates),
		Candidates: FromCandidates(candidates),
	})
}

// HandleGet handles GET /candidates/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	candidate, err := h.service.GetCandidate(ctx, id)
	if err != nil {
		h.logger.InfoContext(ctx, "candidate lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"candidate_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCandidate(candidate))
}
