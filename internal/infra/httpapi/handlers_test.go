package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rosca_engine/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCycleRunner struct {
	RunFunc func(ctx context.Context, now time.Time) (*app.CycleRunStats, error)
}

func (m *mockCycleRunner) Run(ctx context.Context, now time.Time) (*app.CycleRunStats, error) {
	return m.RunFunc(ctx, now)
}

type mockObligationRunner struct {
	RunFunc func(ctx context.Context, now time.Time) (*app.ObligationRunStats, error)
}

func (m *mockObligationRunner) Run(ctx context.Context, now time.Time) (*app.ObligationRunStats, error) {
	return m.RunFunc(ctx, now)
}

func setupTestServer(cycles CycleRunner, obligations ObligationRunner) *Server {
	gin.SetMode(gin.TestMode)
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewServer(cycles, obligations, time.Minute, l.WithField("component", "httpapi"))
}

func TestHandleCycleProgression_Success(t *testing.T) {
	tick := time.Date(2025, 3, 8, 1, 0, 0, 0, time.UTC)
	var gotNow time.Time
	cycles := &mockCycleRunner{RunFunc: func(ctx context.Context, now time.Time) (*app.CycleRunStats, error) {
		gotNow = now
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return &app.CycleRunStats{
			TotalCyclesChecked: 3,
			TransitionsMade:    2,
			ByTransition:       map[string]int{"collecting→deadline_reached": 2},
		}, nil
	}}
	s := setupTestServer(cycles, nil)
	s.clock = func() time.Time { return tick }

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/cycle-progression", nil)
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tick, gotNow)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Stats   app.CycleRunStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Contains(t, body.Message, "2 transitions across 3 cycles")
	assert.Equal(t, 2, body.Stats.ByTransition["collecting→deadline_reached"])
}

func TestHandleOverdueObligations_FetchFailure(t *testing.T) {
	obligations := &mockObligationRunner{RunFunc: func(context.Context, time.Time) (*app.ObligationRunStats, error) {
		return nil, errors.New("failed to fetch overdue candidates: connection refused")
	}}
	s := setupTestServer(nil, obligations)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/overdue-obligations", nil)
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "connection refused")
	assert.GreaterOrEqual(t, body.ProcessingTimeMs, int64(0))
}

func TestHandleOverdueObligations_Success(t *testing.T) {
	obligations := &mockObligationRunner{RunFunc: func(context.Context, time.Time) (*app.ObligationRunStats, error) {
		return &app.ObligationRunStats{TotalChecked: 4, NewlyOverdue: 1, LateFeesApplied: 1, TotalLateFees: "5.00"}, nil
	}}
	s := setupTestServer(nil, obligations)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/overdue-obligations", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	stats := body["stats"].(map[string]any)
	assert.Equal(t, 5.0, stats["total_late_fees"])
	assert.Equal(t, 1.0, stats["newly_overdue"])
}

func TestPreflightIsBareOK(t *testing.T) {
	called := false
	cycles := &mockCycleRunner{RunFunc: func(context.Context, time.Time) (*app.CycleRunStats, error) {
		called = true
		return &app.CycleRunStats{}, nil
	}}
	s := setupTestServer(cycles, nil)

	for _, path := range []string{"/jobs/cycle-progression", "/jobs/overdue-obligations"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, path, nil))

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
	}
	assert.False(t, called, "preflight never runs the engine")
}

func TestHealthz(t *testing.T) {
	s := setupTestServer(nil, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
