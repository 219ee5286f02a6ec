package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/storage/memory"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeCounter int

func (c fakeCounter) ConnectedCount() int { return int(c) }

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) ReadinessReport {
	t.Helper()
	var response ReadinessReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	migrations := func() (uint, bool, error) { return 1, false, nil }
	checker := NewHealthChecker(memory.New(), migrations, fakeCounter(3), "0.1.0", "test-commit")

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	checker.Health().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	response := decodeHealth(t, w)
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "0.1.0", response.Version)
	assert.Equal(t, "test-commit", response.GitCommit)
	assert.NotEmpty(t, response.Timestamp)

	assert.Equal(t, "pass", response.Checks["storage"].Status)
	assert.Equal(t, "pass", response.Checks["migrations"].Status)
	assert.Equal(t, float64(1), response.Checks["migrations"].Details["version"])
	assert.Equal(t, float64(3), response.Checks["realtime"].Details["connections"])
}

func TestHealthCheck_StorageDown(t *testing.T) {
	checker := NewHealthChecker(fakePinger{err: errors.New("dial tcp: connection refused")}, nil, fakeCounter(0), "0.1.0", "c")

	w := httptest.NewRecorder()
	checker.Health().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	response := decodeHealth(t, w)
	assert.Equal(t, "unhealthy", response.Status)
	assert.Equal(t, "storage unreachable: connection refused", response.Checks["storage"].Message)
	_, hasMigrations := response.Checks["migrations"]
	assert.False(t, hasMigrations)
}

func TestHealthCheck_Migrations(t *testing.T) {
	tests := []struct {
		name    string
		fn      MigrationVersionFunc
		message string
	}{
		{"dirty", func() (uint, bool, error) { return 3, true, nil }, "schema version 3 is dirty"},
		{"none applied", func() (uint, bool, error) { return 0, false, nil }, "schema not migrated"},
		{"error", func() (uint, bool, error) { return 0, false, errors.New("no schema_migrations") }, "cannot read schema version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(memory.New(), tt.fn, fakeCounter(0), "v", "c")
			w := httptest.NewRecorder()
			checker.Health().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			response := decodeHealth(t, w)
			assert.Equal(t, "fail", response.Checks["migrations"].Status)
			assert.Equal(t, tt.message, response.Checks["migrations"].Message)
		})
	}
}

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHealthCheck_StorageTimeout(t *testing.T) {
	checker := NewHealthChecker(slowPinger{}, nil, fakeCounter(0), "v", "c")

	w := httptest.NewRecorder()
	checker.Health().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	storage := decodeHealth(t, w).Checks["storage"]
	assert.Equal(t, "storage unreachable: no answer within 2s", storage.Message)
	assert.GreaterOrEqual(t, storage.LatencyMs, int64(2000))
}

func TestOverall(t *testing.T) {
	assert.Equal(t, "healthy", overall(map[string]CheckResult{"a": {Status: checkPass}}))
	assert.Equal(t, "degraded", overall(map[string]CheckResult{"a": {Status: checkPass}, "b": {Status: checkWarn}}))
	assert.Equal(t, "unhealthy", overall(map[string]CheckResult{"a": {Status: checkWarn}, "b": {Status: checkFail}}))
}

func TestHealthCheck_DegradedWithoutRealtime(t *testing.T) {
	checker := NewHealthChecker(memory.New(), nil, nil, "v", "c")

	w := httptest.NewRecorder()
	checker.Health().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", decodeHealth(t, w).Status)
}

func TestHealthCheck_ShuttingDown(t *testing.T) {
	checker := NewHealthChecker(memory.New(), nil, fakeCounter(0), "v", "c")

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	checker.Health().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "shutting_down", decodeHealth(t, w).Status)
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
