// Package httptransport assembles the public HTTP surface: middleware chain,
// health endpoints, metrics exposition and the versioned API routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scout/internal/platform/metrics"
	"scout/internal/platform/middleware"
	"scout/pkg/platform/httputil"
	"scout/pkg/requestcontext"
)

// APIPrefix is the mount point for versioned routes.
const APIPrefix = "/api/v1"

// RouteRegistrar is implemented by the domain handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// RouterConfig carries what NewRouter needs beyond the handlers.
type RouterConfig struct {
	Version     string
	CORSOrigins []string
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// HealthResponse is served by / and /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRouter wires middleware, health and metrics endpoints, and mounts every
// handler under APIPrefix.
func NewRouter(cfg RouterConfig, handlers ...RouteRegistrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	health := healthHandler(cfg.Version)
	r.Get("/", health)
	r.Get("/health", health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route(APIPrefix, func(api chi.Router) {
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Version:   version,
			Timestamp: requestcontext.Now(r.Context()).UTC(),
		})
	}
}
