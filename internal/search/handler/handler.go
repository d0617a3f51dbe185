package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	cmodels "scout/internal/candidate/models"
	"scout/internal/search/models"
	"scout/pkg/platform/httputil"
	"scout/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/search-mocks.go -package=mocks Service

// Service defines the lifecycle operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, spec models.Spec) (*models.Search, error)
	Reconcile(ctx context.Context, id string) (*models.Search, error)
	List(ctx context.Context) ([]*models.Search, error)
	Cancel(ctx context.Context, id string) (*models.Search, error)
	Candidates(ctx context.Context, searchID string) ([]*cmodels.Candidate, error)
}

// Handler wires search endpoints to the lifecycle manager.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts search endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/search", h.HandleCreate)
	r.Get("/search", h.HandleList)
	r.Get("/search/{id}", h.HandleStatus)
	r.Post("/search/{id}/cancel", h.HandleCancel)
}

// HandleCreate handles POST /search.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateSearchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	search, err := h.service.Create(ctx, req.Spec())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create search",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "search accepted",
		"request_id", requestID,
		"search_id", search.ID,
		"status", search.Status,
	)
	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(search))
}

// HandleStatus handles GET /search/{id}. The search is reconciled with the
// provider before it is served.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	search, err := h.service.Reconcile(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to reconcile search",
			"request_id", requestID,
			"search_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	candidates, err := h.service.Candidates(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list search candidates",
			"request_id", requestID,
			"search_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(search, candidates))
}

// HandleList handles GET /search. Searches are served as stored, without
// reconciling, together with their candidates.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	searches, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list searches",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	candidates := make(map[string][]*cmodels.Candidate, len(searches))
	for _, search := range searches {
		found, err := h.service.Candidates(ctx, search.ID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list search candidates",
				"request_id", requestID,
				"search_id", search.ID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		candidates[search.ID] = found
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(searches, candidates))
}

// HandleCancel handles POST /search/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	search, err := h.service.Cancel(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to cancel search",
			"request_id", requestID,
			"search_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "search cancel requested",
		"request_id", requestID,
		"search_id", id,
		"status", search.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(search))
}
