package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/config"
)

func booking(id, tutor string, startHour, startMin, endHour, endMin int) models.Booking {
	return models.Booking{
		ID:        id,
		TutorID:   tutor,
		StudentID: "student-" + id,
		Start:     time.Date(2025, 10, 22, startHour, startMin, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 22, endHour, endMin, 0, 0, time.UTC),
		Status:    models.BookingStatusConfirmed,
	}
}

func bookingIDs(bookings []models.Booking) []string {
	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	return ids
}

func TestConflictDetectorTutorDoubleBooking(t *testing.T) {
	detector := NewConflictDetector(DefaultConflictConfig())
	detected := detector.Detect([]models.Booking{
		booking("B-2", "T1", 9, 30, 10, 30),
		booking("B-1", "T1", 9, 0, 10, 0),
	}, fixedClock())

	require.Len(t, detected, 1)
	require.Equal(t, models.ConflictTypeTutorDoubleBooking, detected[0].Type)
	require.Equal(t, models.SeverityHigh, detected[0].Severity)
	require.Equal(t, "T1", detected[0].Resource)
	require.Equal(t, []string{"B-1", "B-2"}, bookingIDs(detected[0].Bookings))
}

func TestConflictDetectorCollapsesChainsPerTutor(t *testing.T) {
	detector := NewConflictDetector(DefaultConflictConfig())
	pending := booking("B-3", "T1", 10, 15, 11, 0)
	pending.Status = models.BookingStatusPending
	cancelled := booking("B-5", "T1", 9, 0, 12, 0)
	cancelled.Status = models.BookingStatusCancelled

	detected := detector.Detect([]models.Booking{
		booking("B-1", "T1", 9, 0, 10, 0),
		booking("B-2", "T1", 9, 30, 10, 30),
		pending,
		booking("B-4", "T1", 11, 0, 12, 0),
		cancelled,
		booking("B-6", "T2", 9, 0, 10, 0),
	}, fixedClock())

	require.Len(t, detected, 1)
	require.Equal(t, []string{"B-1", "B-2", "B-3"}, bookingIDs(detected[0].Bookings))
	require.Equal(t, models.SeverityMedium, detected[0].Severity)
}

func TestConflictDetectorAdjacentBookingsDoNotOverlap(t *testing.T) {
	detector := NewConflictDetector(DefaultConflictConfig())
	detected := detector.Detect([]models.Booking{
		booking("B-1", "T1", 9, 0, 10, 0),
		booking("B-2", "T1", 10, 0, 11, 0),
	}, fixedClock())
	require.Empty(t, detected)
}

func TestConflictDetectorRoomConflict(t *testing.T) {
	detector := NewConflictDetector(DefaultConflictConfig())
	first := booking("B-1", "T1", 14, 0, 15, 0)
	first.RoomID = "B4-205"
	first.Department = "Computer Science"
	second := booking("B-2", "T2", 14, 30, 15, 30)
	second.RoomID = "B4-205"
	noRoom := booking("B-3", "T3", 14, 0, 15, 0)

	detected := detector.Detect([]models.Booking{first, second, noRoom}, fixedClock())
	require.Len(t, detected, 1)
	require.Equal(t, models.ConflictTypeRoom, detected[0].Type)
	require.Equal(t, "B4-205", detected[0].Resource)
	require.Equal(t, "Computer Science", detected[0].Department)
	require.Equal(t, "Wed 14:00 · Room B4-205", detected[0].Slot)
}

func TestConflictDetectorStudentQuota(t *testing.T) {
	detector := NewConflictDetector(config.ConflictConfig{StudentQuota: 2, QuotaPeriod: "week"})
	session := func(id string, day int) models.Booking {
		b := booking(id, "T-"+id, 9, 0, 10, 0)
		b.StudentID = "S-1"
		b.Start = time.Date(2025, 10, day, 9, 0, 0, 0, time.UTC)
		b.End = b.Start.Add(time.Hour)
		return b
	}
	pending := session("B-5", 24)
	pending.Status = models.BookingStatusPending

	// week of Monday 2025-10-20
	detected := detector.Detect([]models.Booking{
		session("B-1", 20), session("B-2", 21), session("B-3", 22), session("B-4", 26), pending, session("B-6", 27),
	}, fixedClock())

	require.Len(t, detected, 1)
	require.Equal(t, models.ConflictTypeStudentQuota, detected[0].Type)
	require.Equal(t, models.SeverityLow, detected[0].Severity)
	require.Equal(t, "S-1", detected[0].Resource)
	require.Equal(t, []string{"B-3", "B-4"}, bookingIDs(detected[0].Bookings))
	require.Equal(t, "Week of 2025-10-20", detected[0].Slot)

	monthly := NewConflictDetector(config.ConflictConfig{StudentQuota: 4, QuotaPeriod: "month"})
	detected = monthly.Detect([]models.Booking{
		session("B-1", 20), session("B-2", 21), session("B-3", 22), session("B-4", 26), session("B-6", 27),
	}, fixedClock())
	require.Len(t, detected, 1)
	require.Equal(t, []string{"B-6"}, bookingIDs(detected[0].Bookings))
}

func TestConflictDetectorKeepsFirstOccurrenceOfAnID(t *testing.T) {
	detector := NewConflictDetector(DefaultConflictConfig())
	first := booking("B-1", "T1", 9, 0, 10, 0)
	moved := booking("B-1", "T1", 13, 0, 14, 0)

	require.Empty(t, detector.Detect([]models.Booking{first, first}, fixedClock()))

	detected := detector.Detect([]models.Booking{first, booking("B-2", "T1", 9, 30, 10, 30), moved}, fixedClock())
	require.Len(t, detected, 1)
	require.Equal(t, []string{"B-1", "B-2"}, bookingIDs(detected[0].Bookings))
	require.Equal(t, 9, detected[0].Bookings[0].Start.Hour())
}

func TestConflictDetectorNormalizesStatusCase(t *testing.T) {
	detector := NewConflictDetector(config.ConflictConfig{StudentQuota: 1, QuotaPeriod: "week"})
	pending := booking("B-2", "T1", 9, 30, 10, 30)
	pending.Status = "pending"
	lower := booking("B-1", "T1", 9, 0, 10, 0)
	lower.Status = "confirmed"
	lower.StudentID = "S-1"
	other := booking("B-3", "T2", 13, 0, 14, 0)
	other.StudentID = "S-1"
	cancelled := booking("B-4", "T1", 9, 0, 12, 0)
	cancelled.Status = "Cancelled"

	detected := detector.Detect([]models.Booking{lower, pending, other, cancelled}, fixedClock())
	require.Len(t, detected, 2)
	require.Equal(t, models.ConflictTypeTutorDoubleBooking, detected[0].Type)
	require.Equal(t, models.SeverityMedium, detected[0].Severity)
	require.Equal(t, []string{"B-1", "B-2"}, bookingIDs(detected[0].Bookings))
	require.Equal(t, models.ConflictTypeStudentQuota, detected[1].Type)
	require.Equal(t, []string{"B-3"}, bookingIDs(detected[1].Bookings))
}
