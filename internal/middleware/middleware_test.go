package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(logger *slog.Logger, metrics *Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Logger(logger))
	r.Use(metrics.Middleware)
	r.Get("/todo/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	return r
}

func TestLogger_RecordsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	router := newRouter(logger, NewMetrics(prometheus.NewRegistry()))

	req := httptest.NewRequest(http.MethodGet, "/todo/42", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, "request completed")
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "path=/todo/42")
	assert.Contains(t, line, "route=/todo/{id}")
	assert.Contains(t, line, "bytes=15")
	assert.Contains(t, line, "requestID=")
	assert.NotContains(t, line, "secret-token")
}

func TestLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	router := newRouter(logger, NewMetrics(prometheus.NewRegistry()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	router := newRouter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), metrics)

	for _, path := range []string{"/todo/1", "/todo/2", "/todo/3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	expected := `
# HELP todo_http_requests_total Total number of HTTP requests
# TYPE todo_http_requests_total counter
todo_http_requests_total{method="GET",route="/todo/{id}",status="418"} 3
todo_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	require.NoError(t, testutil.CollectAndCompare(metrics.RequestsTotal, strings.NewReader(expected)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.RequestDuration))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}
