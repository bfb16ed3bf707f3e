package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// SuggestionRepository persists matching suggestions.
type SuggestionRepository struct {
	db *sqlx.DB
}

// NewSuggestionRepository constructs the repository.
func NewSuggestionRepository(db *sqlx.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

type suggestionRow struct {
	ID           string                  `db:"id"`
	Status       models.SuggestionStatus `db:"status"`
	StudentID    string                  `db:"student_id"`
	Course       string                  `db:"course"`
	Request      types.JSONText          `db:"request"`
	RankedTutors types.JSONText          `db:"ranked_tutors"`
	Version      int64                   `db:"version"`
	CreatedAt    time.Time               `db:"created_at"`
	UpdatedAt    time.Time               `db:"updated_at"`
}

func (row suggestionRow) toModel() (models.MatchingSuggestion, error) {
	s := models.MatchingSuggestion{
		ID:        row.ID,
		Status:    row.Status,
		StudentID: row.StudentID,
		Course:    row.Course,
		Version:   row.Version,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal(row.Request, &s.Request); err != nil {
		return s, fmt.Errorf("decode suggestion %s request: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.RankedTutors, &s.RankedTutors); err != nil {
		return s, fmt.Errorf("decode suggestion %s ranking: %w", row.ID, err)
	}
	if s.RankedTutors == nil {
		s.RankedTutors = []models.RankedTutor{}
	}
	return s, nil
}

const suggestionColumns = `id, status, student_id, course, request, ranked_tutors, version, created_at, updated_at`

func (r *SuggestionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a suggestion, assigning a SUG-<n> id when none is set.
func (r *SuggestionRepository) Create(ctx context.Context, exec sqlx.ExtContext, s *models.MatchingSuggestion) error {
	target := r.exec(exec)
	if s.ID == "" {
		seq, err := nextSequence(ctx, target, "suggestion")
		if err != nil {
			return err
		}
		s.ID = fmt.Sprintf("SUG-%d", seq)
	}
	if s.Status == "" {
		s.Status = models.SuggestionStatusNew
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	s.Version = 1
	if s.RankedTutors == nil {
		s.RankedTutors = []models.RankedTutor{}
	}

	request, err := json.Marshal(s.Request)
	if err != nil {
		return fmt.Errorf("encode suggestion request: %w", err)
	}
	ranking, err := json.Marshal(s.RankedTutors)
	if err != nil {
		return fmt.Errorf("encode suggestion ranking: %w", err)
	}

	const query = `INSERT INTO matching_suggestions (` + suggestionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := target.ExecContext(ctx, target.Rebind(query),
		s.ID, s.Status, s.StudentID, s.Course, types.JSONText(request), types.JSONText(ranking),
		s.Version, s.CreatedAt, s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create suggestion: %w", err)
	}
	return nil
}

// GetByID fetches a suggestion; sql.ErrNoRows when absent.
func (r *SuggestionRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MatchingSuggestion, error) {
	target := r.exec(exec)
	var row suggestionRow
	query := target.Rebind(`SELECT ` + suggestionColumns + ` FROM matching_suggestions WHERE id = ?`)
	if err := sqlx.GetContext(ctx, target, &row, query, id); err != nil {
		return nil, err
	}
	s, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns suggestions matching the filter, newest first.
func (r *SuggestionRepository) List(ctx context.Context, filter models.SuggestionFilter) ([]models.MatchingSuggestion, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + suggestionColumns + ` FROM matching_suggestions`)

	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = "?"
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, "student_id = ?")
	}
	if filter.Course != "" {
		args = append(args, strings.ToUpper(filter.Course))
		conditions = append(conditions, "UPPER(course) = ?")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	limit, offset := pageWindow(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var rows []suggestionRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(builder.String()), args...); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	result := make([]models.MatchingSuggestion, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// UpdateStatus applies a status change guarded by the expected version.
func (r *SuggestionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int64, status models.SuggestionStatus, at time.Time) error {
	target := r.exec(exec)
	const query = `UPDATE matching_suggestions SET status = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`
	res, err := target.ExecContext(ctx, target.Rebind(query), status, at, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	return expectOneRow(res, "suggestion update")
}

func pageWindow(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
