package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

func strPtr(v string) *string { return &v }

func overridePayload() dto.CreateManualAssignmentRequest {
	return dto.CreateManualAssignmentRequest{
		StudentID: "2352525",
		TutorID:   "tut-3",
		Course:    strPtr("CO1001"),
		Reason:    "AI suggestion had no available tutor",
	}
}

func TestAssignmentServiceCreateWritesOneAuditEntry(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.assignmentService()
	ctx := context.Background()

	assignment, err := svc.Create(ctx, overridePayload(), coordinator)
	require.NoError(t, err)
	require.Equal(t, "MAN-1", assignment.ID)
	require.Equal(t, "coord-1", assignment.CoordinatorID)
	require.Equal(t, fixedClock(), assignment.CreatedAt)

	entries, err := f.audit.List(ctx, models.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.AuditActionManualAssignment, entries[0].Action)
	require.Equal(t, models.AuditResourceAssignment, entries[0].ResourceType)
	require.Equal(t, "MAN-1", entries[0].ResourceID)
	require.Equal(t, models.RoleCoordinator, entries[0].ActorRole)

	var details map[string]string
	require.NoError(t, json.Unmarshal(entries[0].Details, &details))
	require.Equal(t, map[string]string{"tutorId": "tut-3", "studentId": "2352525", "course": "CO1001"}, details)

	stored, err := svc.Get(ctx, "MAN-1", coordinator)
	require.NoError(t, err)
	require.Equal(t, "AI suggestion had no available tutor", stored.Reason)

	next, err := svc.Create(ctx, overridePayload(), programAdm)
	require.NoError(t, err)
	require.Equal(t, "MAN-2", next.ID)
}

func TestAssignmentServiceRejectsMissingReason(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.assignmentService()

	for _, reason := range []string{"", "   \t"} {
		payload := overridePayload()
		payload.Reason = reason
		_, err := svc.Create(context.Background(), payload, coordinator)
		requireKind(t, err, appErrors.ErrValidation)
		require.Equal(t, "missing required fields", appErrors.FromError(err).Message)
	}
	require.Zero(t, f.count(t, "manual_assignments"))
	require.Zero(t, f.count(t, "audit_logs"))
}

func TestAssignmentServiceRejectsUnauthorizedRole(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.assignmentService()

	for _, role := range []string{"Student", "Tutor", "", "Janitor"} {
		_, err := svc.Create(context.Background(), overridePayload(), models.Actor{ID: "x", Role: role})
		requireKind(t, err, appErrors.ErrForbidden)
		require.Equal(t, "you do not have permission", err.Error())
	}
	require.Zero(t, f.count(t, "manual_assignments"))
	require.Zero(t, f.count(t, "audit_logs"))
}

func TestAssignmentServiceAssignsOriginSuggestion(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.assignmentService()
	ctx := context.Background()
	seedSuggestion(t, f, "SUG-201")

	payload := overridePayload()
	payload.OriginSuggestionID = strPtr(" SUG-201 ")
	assignment, err := svc.Create(ctx, payload, coordinator)
	require.NoError(t, err)
	require.Equal(t, "SUG-201", *assignment.OriginSuggestionID)

	suggestion, err := f.suggestions.GetByID(ctx, nil, "SUG-201")
	require.NoError(t, err)
	require.Equal(t, models.SuggestionStatusAssigned, suggestion.Status)
	require.Equal(t, 1, f.count(t, "audit_logs"))

	// the suggestion is terminal now
	_, err = svc.Create(ctx, payload, coordinator)
	requireKind(t, err, appErrors.ErrConflict)
	require.Equal(t, 1, f.count(t, "manual_assignments"))
}

func TestAssignmentServiceRejectsUnknownOrigins(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.assignmentService()

	payload := overridePayload()
	payload.OriginSuggestionID = strPtr("SUG-404")
	_, err := svc.Create(context.Background(), payload, coordinator)
	requireKind(t, err, appErrors.ErrConflict)

	payload = overridePayload()
	payload.OriginConflictRequestID = strPtr("CREQ-404")
	_, err = svc.Create(context.Background(), payload, coordinator)
	requireKind(t, err, appErrors.ErrConflict)

	require.Zero(t, f.count(t, "manual_assignments"))
	require.Zero(t, f.count(t, "audit_logs"))
}

func TestAssignmentServiceResolvesOriginConflictRequest(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	conflicts, err := f.conflictService().Scan(ctx, []models.Booking{
		booking("B-1", "T1", 9, 0, 10, 0),
		booking("B-2", "T1", 9, 30, 10, 30),
	}, coordinator)
	require.NoError(t, err)
	requests := conflicts[0].Requests

	svc := f.assignmentService()
	payload := overridePayload()
	payload.OriginConflictRequestID = strPtr(requests[0].ID)
	assignment, err := svc.Create(ctx, payload, coordinator)
	require.NoError(t, err)

	conflict, err := f.conflicts.GetByID(ctx, nil, conflicts[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.ConflictStatusOpen, conflict.Status)
	require.Equal(t, "Manual assignment "+assignment.ID, *conflict.Requests[0].Resolution)

	_, err = svc.Create(ctx, payload, coordinator)
	requireKind(t, err, appErrors.ErrConflict)

	payload.OriginConflictRequestID = strPtr(requests[1].ID)
	_, err = svc.Create(ctx, payload, coordinator)
	require.NoError(t, err)

	conflict, err = f.conflicts.GetByID(ctx, nil, conflicts[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.ConflictStatusResolved, conflict.Status)
	require.Equal(t, 2, f.count(t, "audit_logs"))
}

func TestAssignmentServiceGetRequiresReadAccess(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.assignmentService()

	_, err := svc.Get(context.Background(), "MAN-1", student)
	requireKind(t, err, appErrors.ErrForbidden)

	_, err = svc.Get(context.Background(), "MAN-1", coordinator)
	requireKind(t, err, appErrors.ErrNotFound)
}
