package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// DirectoryRepository reads the tutor directory and booking snapshot kept in the local
// store. Both are owned by external collaborators and only refreshed through imports.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

type tutorRow struct {
	models.TutorCandidate
	SubjectsJSON     types.JSONText `db:"subjects"`
	AvailabilityJSON types.JSONText `db:"availability"`
}

const bookingColumns = `id, tutor_id, room_id, student_id, course, department, start_at, end_at, status`

// ListTutors returns the whole directory ordered by id.
func (r *DirectoryRepository) ListTutors(ctx context.Context) ([]models.TutorCandidate, error) {
	const query = `SELECT id, name, department, subjects, availability, workload, average_rating FROM tutors ORDER BY id`
	var rows []tutorRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}
	tutors := make([]models.TutorCandidate, 0, len(rows))
	for _, row := range rows {
		tutor := row.TutorCandidate
		if err := json.Unmarshal(row.SubjectsJSON, &tutor.Subjects); err != nil {
			return nil, fmt.Errorf("decode tutor %s subjects: %w", tutor.ID, err)
		}
		if err := json.Unmarshal(row.AvailabilityJSON, &tutor.Availability); err != nil {
			return nil, fmt.Errorf("decode tutor %s availability: %w", tutor.ID, err)
		}
		tutors = append(tutors, tutor)
	}
	return tutors, nil
}

// UpsertTutor inserts or replaces one directory entry.
func (r *DirectoryRepository) UpsertTutor(ctx context.Context, tutor models.TutorCandidate) error {
	subjects := tutor.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	availability := tutor.Availability
	if availability == nil {
		availability = []models.TimeWindow{}
	}
	subjectsJSON, err := json.Marshal(subjects)
	if err != nil {
		return fmt.Errorf("encode tutor subjects: %w", err)
	}
	availabilityJSON, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("encode tutor availability: %w", err)
	}
	const query = `INSERT INTO tutors (id, name, department, subjects, availability, workload, average_rating)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, department = excluded.department,
subjects = excluded.subjects, availability = excluded.availability,
workload = excluded.workload, average_rating = excluded.average_rating`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		tutor.ID, tutor.Name, tutor.Department, types.JSONText(subjectsJSON), types.JSONText(availabilityJSON),
		tutor.Workload, tutor.AverageRating,
	); err != nil {
		return fmt.Errorf("upsert tutor: %w", err)
	}
	return nil
}

// ListBookings returns the stored booking snapshot ordered by start.
func (r *DirectoryRepository) ListBookings(ctx context.Context) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY start_at, id`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	for i := range bookings {
		bookings[i].Start = bookings[i].Start.UTC()
		bookings[i].End = bookings[i].End.UTC()
	}
	return bookings, nil
}

// UpsertBooking inserts or replaces one booking of the snapshot.
func (r *DirectoryRepository) UpsertBooking(ctx context.Context, booking models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.BookingStatusConfirmed
	}
	const query = `INSERT INTO bookings (` + bookingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET tutor_id = excluded.tutor_id, room_id = excluded.room_id,
student_id = excluded.student_id, course = excluded.course, department = excluded.department,
start_at = excluded.start_at, end_at = excluded.end_at, status = excluded.status`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		booking.ID, booking.TutorID, booking.RoomID, booking.StudentID, booking.Course, booking.Department,
		booking.Start.UTC(), booking.End.UTC(), booking.Status,
	); err != nil {
		return fmt.Errorf("upsert booking: %w", err)
	}
	return nil
}
