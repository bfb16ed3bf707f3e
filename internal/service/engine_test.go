package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/pkg/database"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/lock"
)

var (
	coordinator = models.Actor{ID: "coord-1", Role: "Coordinator"}
	programAdm  = models.Actor{ID: "admin-1", Role: "program_admin"}
	student     = models.Actor{ID: "2352525", Role: "Student"}
)

func fixedClock() time.Time {
	return time.Date(2025, 10, 22, 8, 0, 0, 0, time.UTC)
}

type engineFixture struct {
	db          *sqlx.DB
	suggestions *repository.SuggestionRepository
	conflicts   *repository.ConflictRepository
	assignments *repository.AssignmentRepository
	audit       *repository.AuditRepository
	directory   *repository.DirectoryRepository
	tx          *repository.TxManager
	locker      *lock.LocalLocker
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))
	return &engineFixture{
		db:          db,
		suggestions: repository.NewSuggestionRepository(db),
		conflicts:   repository.NewConflictRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		audit:       repository.NewAuditRepository(db),
		directory:   repository.NewDirectoryRepository(db),
		tx:          repository.NewTxManager(db),
		locker:      lock.NewLocalLocker(),
	}
}

func (f *engineFixture) options() []Option {
	return []Option{WithLocker(f.locker, time.Minute), WithClock(fixedClock)}
}

func (f *engineFixture) suggestionService() *SuggestionService {
	return NewSuggestionService(f.suggestions, f.audit, f.directory, f.tx, nil, nil, nil, f.options()...)
}

func (f *engineFixture) conflictService() *ConflictService {
	return NewConflictService(f.conflicts, f.audit, f.directory, f.tx, nil, nil, nil, f.options()...)
}

func (f *engineFixture) assignmentService() *AssignmentService {
	return NewAssignmentService(f.assignments, f.audit, f.suggestions, f.conflicts, f.tx, nil, nil, f.options()...)
}

func (f *engineFixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func requireKind(t *testing.T, err error, kind *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, appErrors.IsKind(err, kind), "expected %s, got %v", kind.Code, err)
}
