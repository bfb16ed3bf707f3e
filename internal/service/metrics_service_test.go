package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
)

func TestMetricsServiceCountsEngineEvents(t *testing.T) {
	f := newEngineFixture(t)
	metrics := NewMetricsService()
	opts := append(f.options(), WithMetrics(metrics))
	suggestions := NewSuggestionService(f.suggestions, f.audit, f.directory, f.tx, nil, nil, nil, opts...)
	conflicts := NewConflictService(f.conflicts, f.audit, f.directory, f.tx, nil, nil, nil, opts...)
	ctx := context.Background()

	_, err := suggestions.Generate(ctx, dto.GenerateSuggestionRequest{StudentID: "S-1", Course: "CO1001"}, coordinator)
	require.NoError(t, err)
	_, err = conflicts.Scan(ctx, []models.Booking{booking("B-1", "T1", 9, 0, 10, 0), booking("B-2", "T1", 9, 30, 10, 30)}, coordinator)
	require.NoError(t, err)

	release, err := f.locker.TryLock(ctx, "suggestion:SUG-1", time.Minute)
	require.NoError(t, err)
	_, err = suggestions.Transition(ctx, "SUG-1", "REVIEWED", coordinator)
	require.Error(t, err)
	release()

	_, err = suggestions.Transition(ctx, "SUG-1", "REVIEWED", coordinator)
	require.NoError(t, err)
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/conflicts", http.StatusOK, 20*time.Millisecond)

	snapshot := metrics.Snapshot()
	require.Equal(t, uint64(1), snapshot.SuggestionsGenerated)
	require.Equal(t, uint64(1), snapshot.ConflictsOpened)
	require.Equal(t, uint64(1), snapshot.LockContention)
	require.Equal(t, uint64(1), snapshot.RequestsTotal)
	require.InDelta(t, 20.0, snapshot.AverageRequestDurationMs, 0.001)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `matching_suggestion_transitions_total{status="REVIEWED"} 1`)
}

func TestMetricsServiceIsNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordAssignmentCreated()
	metrics.RecordLockContention("suggestion")
	require.Equal(t, MetricsSnapshot{}, metrics.Snapshot())

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
