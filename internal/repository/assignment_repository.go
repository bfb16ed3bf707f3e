package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// AssignmentRepository stores manual assignments. Rows are insert-only.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, student_id, tutor_id, coordinator_id, reason, course, slot, origin_suggestion_id, origin_conflict_request_id, created_at`

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts the assignment with a MAN-<n> id.
func (r *AssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.ManualAssignment) error {
	target := r.exec(exec)
	if assignment.ID == "" {
		seq, err := nextSequence(ctx, target, "assignment")
		if err != nil {
			return err
		}
		assignment.ID = fmt.Sprintf("MAN-%d", seq)
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO manual_assignments (` + assignmentColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := target.ExecContext(ctx, target.Rebind(query),
		assignment.ID, assignment.StudentID, assignment.TutorID, assignment.CoordinatorID, assignment.Reason,
		assignment.Course, assignment.Slot, assignment.OriginSuggestionID, assignment.OriginConflictRequestID,
		assignment.CreatedAt,
	); err != nil {
		return fmt.Errorf("create manual assignment: %w", err)
	}
	return nil
}

// GetByID fetches an assignment; sql.ErrNoRows when absent.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.ManualAssignment, error) {
	var assignment models.ManualAssignment
	query := r.db.Rebind(`SELECT ` + assignmentColumns + ` FROM manual_assignments WHERE id = ?`)
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// List returns assignments matching the filter, newest first.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.ManualAssignment, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + assignmentColumns + ` FROM manual_assignments`)

	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, "student_id = ?")
	}
	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, "tutor_id = ?")
	}
	if filter.CoordinatorID != "" {
		args = append(args, filter.CoordinatorID)
		conditions = append(conditions, "coordinator_id = ?")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	limit, offset := pageWindow(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var assignments []models.ManualAssignment
	if err := r.db.SelectContext(ctx, &assignments, r.db.Rebind(builder.String()), args...); err != nil {
		return nil, fmt.Errorf("list manual assignments: %w", err)
	}
	if assignments == nil {
		assignments = []models.ManualAssignment{}
	}
	return assignments, nil
}
