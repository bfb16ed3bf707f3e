package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

func requestBookings(conflict models.Conflict, status models.ConflictStatus) []string {
	return conflict.BookingIDs(status)
}

func TestConflictServiceScanOpensOneConflictPerTutor(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	snapshot := []models.Booking{booking("B-1", "T1", 9, 0, 10, 0), booking("B-2", "T1", 9, 30, 10, 30)}
	conflicts, err := svc.Scan(ctx, snapshot, coordinator)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "CONF-1", conflicts[0].ID)
	require.Equal(t, models.ConflictTypeTutorDoubleBooking, conflicts[0].Type)
	require.Equal(t, models.SeverityHigh, conflicts[0].Severity)
	require.Equal(t, models.ConflictStatusOpen, conflicts[0].Status)
	require.ElementsMatch(t, []string{"B-1", "B-2"}, requestBookings(conflicts[0], ""))

	again, err := svc.Scan(ctx, snapshot, coordinator)
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, conflicts[0].ID, again[0].ID)
	require.Len(t, again[0].Requests, 2)
	require.Equal(t, 1, f.count(t, "conflicts"))
	require.Equal(t, 2, f.count(t, "conflict_requests"))
}

func TestConflictServiceRescanTracksGroupChanges(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	_, err := svc.Scan(ctx, []models.Booking{
		booking("B-1", "T1", 9, 0, 10, 0),
		booking("B-2", "T1", 9, 30, 10, 30),
	}, coordinator)
	require.NoError(t, err)

	// B-2 moved away, B-3 arrived
	conflicts, err := svc.Scan(ctx, []models.Booking{
		booking("B-1", "T1", 9, 0, 10, 0),
		booking("B-2", "T1", 13, 0, 14, 0),
		booking("B-3", "T1", 9, 45, 10, 15),
	}, coordinator)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.ElementsMatch(t, []string{"B-1", "B-3"}, requestBookings(conflicts[0], models.ConflictStatusOpen))
	require.Equal(t, []string{"B-2"}, requestBookings(conflicts[0], models.ConflictStatusResolved))
	for _, req := range conflicts[0].Requests {
		if req.BookingID == "B-2" {
			require.Equal(t, models.ResolutionExternal, *req.Resolution)
		}
	}

	// everything resolved externally: nothing returned and the conflict is closed
	conflicts, err = svc.Scan(ctx, []models.Booking{booking("B-1", "T1", 9, 0, 10, 0)}, coordinator)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	stored, err := f.conflicts.GetByID(ctx, nil, "CONF-1")
	require.NoError(t, err)
	require.Equal(t, models.ConflictStatusResolved, stored.Status)
	require.True(t, stored.AllResolved())
}

func TestConflictServiceResolveRequest(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	snapshot := []models.Booking{booking("B-1", "T1", 9, 0, 10, 0), booking("B-2", "T1", 9, 30, 10, 30)}
	conflicts, err := svc.Scan(ctx, snapshot, coordinator)
	require.NoError(t, err)
	first, second := conflicts[0].Requests[0], conflicts[0].Requests[1]

	_, err = svc.ResolveRequest(ctx, first.ID, "moved", models.Actor{ID: "t", Role: "Tutor"})
	requireKind(t, err, appErrors.ErrForbidden)

	_, err = svc.ResolveRequest(ctx, "CREQ-404", "moved", coordinator)
	requireKind(t, err, appErrors.ErrNotFound)

	conflict, err := svc.ResolveRequest(ctx, first.ID, "Moved to Thursday", coordinator)
	require.NoError(t, err)
	require.Equal(t, models.ConflictStatusOpen, conflict.Status)

	_, err = svc.ResolveRequest(ctx, first.ID, "again", coordinator)
	requireKind(t, err, appErrors.ErrConflict)

	conflict, err = svc.ResolveRequest(ctx, second.ID, "", models.Actor{ID: "chair-1", Role: "Department Chair"})
	require.NoError(t, err)
	require.Equal(t, models.ConflictStatusResolved, conflict.Status)
	require.NotNil(t, conflict.ResolvedAt)
	require.Equal(t, "chair-1", *conflict.Requests[1].ResolvedBy)
	require.Equal(t, defaultResolution, *conflict.Requests[1].Resolution)

	entries, err := f.audit.List(ctx, models.AuditFilter{Action: "conflict request"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, models.RoleDepartmentChair, entries[0].ActorRole)

	// coordinator decisions stick: the same overlap is not raised again
	rescanned, err := svc.Scan(ctx, snapshot, coordinator)
	require.NoError(t, err)
	require.Empty(t, rescanned)
	require.Equal(t, 1, f.count(t, "conflicts"))
}

func TestConflictServiceNewClashReraisesResolvedBookings(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	first := booking("B-1", "T1", 9, 0, 10, 0)
	second := booking("B-2", "T1", 9, 30, 10, 30)
	conflicts, err := svc.Scan(ctx, []models.Booking{first, second}, coordinator)
	require.NoError(t, err)
	for _, req := range conflicts[0].Requests {
		_, err := svc.ResolveRequest(ctx, req.ID, "Moved to Thursday", coordinator)
		require.NoError(t, err)
	}

	// B-3 overlaps B-1 only, which chains all three into one group
	conflicts, err = svc.Scan(ctx, []models.Booking{first, second, booking("B-3", "T1", 8, 30, 9, 15)}, coordinator)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "CONF-2", conflicts[0].ID)
	require.Equal(t, models.ConflictTypeTutorDoubleBooking, conflicts[0].Type)
	require.ElementsMatch(t, []string{"B-1", "B-2", "B-3"}, requestBookings(conflicts[0], models.ConflictStatusOpen))

	again, err := svc.Scan(ctx, []models.Booking{first, second, booking("B-3", "T1", 8, 30, 9, 15)}, coordinator)
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Len(t, again[0].Requests, 3)
}

func TestConflictServiceRescanKeepsPartialDecisions(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	snapshot := []models.Booking{booking("B-1", "T1", 9, 0, 10, 0), booking("B-2", "T1", 9, 30, 10, 30)}
	conflicts, err := svc.Scan(ctx, snapshot, coordinator)
	require.NoError(t, err)
	_, err = svc.ResolveRequest(ctx, conflicts[0].Requests[0].ID, "Moved to Thursday", coordinator)
	require.NoError(t, err)

	conflicts, err = svc.Scan(ctx, snapshot, coordinator)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Len(t, conflicts[0].Requests, 2)
	require.Len(t, requestBookings(conflicts[0], models.ConflictStatusOpen), 1)
	require.Equal(t, 2, f.count(t, "conflict_requests"))
}

func TestConflictServiceScanIgnoresRepeatedBookings(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()

	b := booking("B-1", "T1", 9, 0, 10, 0)
	conflicts, err := svc.Scan(context.Background(), []models.Booking{b, b}, coordinator)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Zero(t, f.count(t, "conflicts"))
}

func TestConflictServiceScanNormalizesStatus(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	pending := booking("B-2", "T1", 9, 30, 10, 30)
	pending.Status = " pending"
	cancelled := booking("B-3", "T1", 9, 0, 12, 0)
	cancelled.Status = "cancelled"
	conflicts, err := svc.Scan(ctx, []models.Booking{booking("B-1", "T1", 9, 0, 10, 0), pending, cancelled}, coordinator)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, models.SeverityMedium, conflicts[0].Severity)
	require.ElementsMatch(t, []string{"B-1", "B-2"}, requestBookings(conflicts[0], ""))

	unknown := booking("B-4", "T1", 9, 0, 10, 0)
	unknown.Status = "TENTATIVE"
	_, err = svc.Scan(ctx, []models.Booking{unknown}, coordinator)
	requireKind(t, err, appErrors.ErrValidation)
	require.Equal(t, `booking B-4 has unknown status "TENTATIVE"`, err.Error())
	require.Equal(t, 1, f.count(t, "conflicts"))
}

func TestConflictServiceScanStoredSharesWork(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()
	require.NoError(t, f.directory.UpsertBooking(ctx, booking("B-1", "T1", 9, 0, 10, 0)))
	require.NoError(t, f.directory.UpsertBooking(ctx, booking("B-2", "T1", 9, 30, 10, 30)))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ScanStored(ctx, coordinator)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.count(t, "conflicts"))
	require.Equal(t, 2, f.count(t, "conflict_requests"))

	_, err := svc.ScanStored(ctx, student)
	requireKind(t, err, appErrors.ErrForbidden)
}

func TestConflictServiceGet(t *testing.T) {
	f := newEngineFixture(t)
	svc := f.conflictService()
	ctx := context.Background()

	_, err := svc.Scan(ctx, []models.Booking{booking("B-1", "T1", 9, 0, 10, 0), booking("B-2", "T1", 9, 30, 10, 30)}, coordinator)
	require.NoError(t, err)

	conflict, err := svc.Get(ctx, "CONF-1", coordinator)
	require.NoError(t, err)
	require.Len(t, conflict.Requests, 2)

	_, err = svc.Get(ctx, "CONF-9", coordinator)
	requireKind(t, err, appErrors.ErrNotFound)
}
