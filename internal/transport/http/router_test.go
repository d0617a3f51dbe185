package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/platform/middleware"
	"scout/pkg/testutil"
)

type pingHandler struct{}

func (pingHandler) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
}

func newTestRouter() http.Handler {
	return NewRouter(RouterConfig{
		Version:     "1.2.3",
		CORSOrigins: []string{"http://localhost:5173"},
	}, pingHandler{})
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/", "/health"} {
		t.Run(path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, rr.Code)
			body := testutil.UnmarshalResponse[HealthResponse](t, rr)
			assert.Equal(t, "healthy", body.Status)
			assert.Equal(t, "1.2.3", body.Version)
			assert.False(t, body.Timestamp.IsZero())
			assert.NotEmpty(t, rr.Header().Get(middleware.HeaderRequestID))
		})
	}
}

func TestAPIRoutesAreMountedUnderPrefix(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, APIPrefix+"/ping", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, APIPrefix+"/panic", nil))
	testutil.AssertInternalError(t, rr)
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, APIPrefix+"/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
