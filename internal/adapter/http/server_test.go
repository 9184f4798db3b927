package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/curbdata/parking-aggregator/internal/adapter/http"
)

// --- mocks ---

type stubReadiness struct {
	err error
}

func (s *stubReadiness) CheckReadiness(context.Context) error { return s.err }

// --- helpers ---

func newOpsServer(readyErr error) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &stubReadiness{err: readyErr}, logger)
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- tests ---

func TestHealthzReportsServiceAndUptime(t *testing.T) {
	srv := newOpsServer(nil)

	rec := get(t, srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "parkingd", body["service"])
	uptime, ok := body["uptime_seconds"].(float64)
	require.True(t, ok, "uptime_seconds missing")
	assert.GreaterOrEqual(t, uptime, 0.0)
}

func TestReadyzFollowsChecker(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newOpsServer(nil)

		rec := get(t, srv, "/readyz")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", decode(t, rec)["status"])
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newOpsServer(errors.New("no ingestion run has completed yet"))

		rec := get(t, srv, "/readyz")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "not ready", body["status"])
		assert.Equal(t, "no ingestion run has completed yet", body["reason"])
	})
}

func TestMetricsServesPrometheusText(t *testing.T) {
	srv := newOpsServer(nil)

	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNoDomainRoutes(t *testing.T) {
	srv := newOpsServer(nil)

	for _, path := range []string{"/spots", "/availability", "/report"} {
		rec := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}
