package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

func seedSuggestion(t *testing.T, f *engineFixture, id string) *models.MatchingSuggestion {
	t.Helper()
	suggestion := &models.MatchingSuggestion{
		ID:        id,
		StudentID: "2352525",
		Course:    "CO1001",
		Request:   models.StudentRequest{ID: "REQ-1", StudentID: "2352525", Course: "CO1001"},
		CreatedAt: fixedClock(),
	}
	require.NoError(t, f.suggestions.Create(context.Background(), nil, suggestion))
	return suggestion
}

func TestSuggestionServiceLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.suggestionService()
	ctx := context.Background()
	seedSuggestion(t, f, "SUG-201")

	reviewed, err := svc.Transition(ctx, "SUG-201", "REVIEWED", coordinator)
	require.NoError(t, err)
	require.Equal(t, models.SuggestionStatusReviewed, reviewed.Status)
	require.Equal(t, int64(2), reviewed.Version)

	assigned, err := svc.Transition(ctx, "SUG-201", "assigned", programAdm)
	require.NoError(t, err)
	require.Equal(t, models.SuggestionStatusAssigned, assigned.Status)

	_, err = svc.Transition(ctx, "SUG-201", "REJECTED", coordinator)
	requireKind(t, err, appErrors.ErrConflict)
	require.Equal(t, "this item was already handled by someone else", err.Error())

	same, err := svc.Transition(ctx, "SUG-201", "ASSIGNED", coordinator)
	require.NoError(t, err)
	require.Equal(t, models.SuggestionStatusAssigned, same.Status)

	require.Equal(t, 2, f.count(t, "audit_logs"))
	entries, err := f.audit.List(ctx, models.AuditFilter{})
	require.NoError(t, err)
	require.Equal(t, models.AuditActionSuggestionStatus, entries[0].Action)
	require.Equal(t, "admin-1", entries[0].ActorID)
	require.Equal(t, models.RoleProgramAdmin, entries[0].ActorRole)
	require.JSONEq(t, `{"from":"REVIEWED","to":"ASSIGNED"}`, string(entries[0].Details))
}

func TestSuggestionServiceTransitionErrors(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.suggestionService()
	ctx := context.Background()
	seedSuggestion(t, f, "SUG-1")

	_, err := svc.Transition(ctx, "SUG-1", "REVIEWED", student)
	requireKind(t, err, appErrors.ErrForbidden)

	_, err = svc.Transition(ctx, "SUG-1", "DONE", coordinator)
	requireKind(t, err, appErrors.ErrValidation)

	_, err = svc.Transition(ctx, "SUG-404", "REVIEWED", coordinator)
	requireKind(t, err, appErrors.ErrNotFound)

	_, err = svc.Transition(ctx, "SUG-1", "ASSIGNED", coordinator)
	requireKind(t, err, appErrors.ErrConflict)

	rejected, err := svc.Transition(ctx, "SUG-1", "REJECTED", coordinator)
	require.NoError(t, err)
	require.Equal(t, models.SuggestionStatusRejected, rejected.Status)

	_, err = svc.Transition(ctx, "SUG-1", "REVIEWED", coordinator)
	requireKind(t, err, appErrors.ErrConflict)
	require.Equal(t, 1, f.count(t, "audit_logs"))
}

func TestSuggestionServiceTransitionLosesHeldLock(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.suggestionService()
	seedSuggestion(t, f, "SUG-1")

	release, err := f.locker.TryLock(context.Background(), "suggestion:SUG-1", time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = svc.Transition(context.Background(), "SUG-1", "REVIEWED", coordinator)
	requireKind(t, err, appErrors.ErrConflict)

	stored, err := f.suggestions.GetByID(context.Background(), nil, "SUG-1")
	require.NoError(t, err)
	require.Equal(t, models.SuggestionStatusNew, stored.Status)
	require.Zero(t, f.count(t, "audit_logs"))
}

func TestSuggestionServiceGenerateRanksCandidates(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.suggestionService()
	ctx := context.Background()

	suggestion, err := svc.Generate(ctx, dto.GenerateSuggestionRequest{
		StudentID:        " 2352525 ",
		Course:           "co1001",
		PreferredWindows: []models.TimeWindow{window(9, 11)},
		Candidates: []models.TutorCandidate{
			{ID: "tut-2", Subjects: []string{"CO1001"}, AverageRating: 4},
			{ID: "tut-1", Subjects: []string{"CO1001"}, AverageRating: 4},
			{ID: "tut-3", Subjects: []string{"CO1001"}, Availability: []models.TimeWindow{window(9, 11)}, AverageRating: 5},
			{ID: "2352525", Subjects: []string{"CO1001"}, AverageRating: 5},
		},
	}, coordinator)
	require.NoError(t, err)
	require.Equal(t, "SUG-1", suggestion.ID)
	require.Equal(t, models.SuggestionStatusNew, suggestion.Status)
	require.Equal(t, "CO1001", suggestion.Course)
	require.Len(t, suggestion.RankedTutors, 3)
	require.Equal(t, "tut-3", suggestion.RankedTutors[0].TutorID)
	require.Equal(t, "tut-1", suggestion.RankedTutors[1].TutorID)
	require.True(t, sort.SliceIsSorted(suggestion.RankedTutors, func(i, j int) bool {
		return suggestion.RankedTutors[i].Score > suggestion.RankedTutors[j].Score
	}))

	stored, err := svc.Get(ctx, suggestion.ID, coordinator)
	require.NoError(t, err)
	require.Equal(t, suggestion.RankedTutors, stored.RankedTutors)
	require.Equal(t, suggestion.Request.ID, stored.Request.ID)
}

func TestSuggestionServiceGenerateFallsBackToDirectory(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.suggestionService()
	ctx := context.Background()
	require.NoError(t, f.directory.UpsertTutor(ctx, models.TutorCandidate{ID: "tut-9", Subjects: []string{"CO1001"}, AverageRating: 5}))

	suggestion, err := svc.Generate(ctx, dto.GenerateSuggestionRequest{StudentID: "S-1", Course: "CO1001"}, coordinator)
	require.NoError(t, err)
	require.Len(t, suggestion.RankedTutors, 1)
	require.Equal(t, 60.0, suggestion.RankedTutors[0].Score)
}

func TestSuggestionServiceGenerateValidation(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.suggestionService()
	ctx := context.Background()

	_, err := svc.Generate(ctx, dto.GenerateSuggestionRequest{StudentID: "S-1"}, coordinator)
	requireKind(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(ctx, dto.GenerateSuggestionRequest{StudentID: "S-1", Course: "CO1001", PreferredWindows: []models.TimeWindow{window(11, 9)}}, coordinator)
	requireKind(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(ctx, dto.GenerateSuggestionRequest{StudentID: "S-1", Course: "CO1001"}, models.Actor{ID: "d", Role: "Department Chair"})
	requireKind(t, err, appErrors.ErrForbidden)
	require.Zero(t, f.count(t, "matching_suggestions"))
}
