package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO id_sequences")).
		WithArgs("assignment").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO manual_assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.ManualAssignment{StudentID: "S-1", TutorID: "T-1", CoordinatorID: "coord-1", Reason: "Student request"}
	require.NoError(t, repo.Create(context.Background(), nil, assignment))
	require.Equal(t, "MAN-3", assignment.ID)
	require.False(t, assignment.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListSQLite(t *testing.T) {
	db := newSQLiteStore(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	course := "CS101"
	origin := "SUG-4"
	require.NoError(t, repo.Create(ctx, nil, &models.ManualAssignment{StudentID: "S-1", TutorID: "T-1", CoordinatorID: "coord-1", Reason: "r1", Course: &course, OriginSuggestionID: &origin, CreatedAt: time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)}))
	require.NoError(t, repo.Create(ctx, nil, &models.ManualAssignment{StudentID: "S-2", TutorID: "T-1", CoordinatorID: "coord-2", Reason: "r2", CreatedAt: time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)}))

	list, err := repo.List(ctx, models.AssignmentFilter{TutorID: "T-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "MAN-2", list[0].ID)

	list, err = repo.List(ctx, models.AssignmentFilter{CoordinatorID: "coord-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "CS101", *list[0].Course)
	require.Equal(t, "SUG-4", *list[0].OriginSuggestionID)
	require.Nil(t, list[0].Slot)

	list, err = repo.List(ctx, models.AssignmentFilter{StudentID: "S-9"})
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	found, err := repo.GetByID(ctx, "MAN-1")
	require.NoError(t, err)
	require.Equal(t, "r1", found.Reason)

	_, err = repo.GetByID(ctx, "MAN-9")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
