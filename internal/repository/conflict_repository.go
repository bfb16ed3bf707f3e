package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// ConflictRepository persists conflicts and the requests grouped under them.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository constructs the repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

const (
	conflictColumns        = `id, type, severity, resource, department, slot, details, status, created_at, resolved_at`
	conflictRequestColumns = `id, conflict_id, booking_id, student_id, course, slot, status, resolution, resolved_by, resolved_at, version`
)

func (r *ConflictRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an OPEN conflict without requests.
func (r *ConflictRepository) Create(ctx context.Context, exec sqlx.ExtContext, conflict *models.Conflict) error {
	target := r.exec(exec)
	if conflict.ID == "" {
		seq, err := nextSequence(ctx, target, "conflict")
		if err != nil {
			return err
		}
		conflict.ID = fmt.Sprintf("CONF-%d", seq)
	}
	conflict.Status = models.ConflictStatusOpen
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO conflicts (id, type, severity, resource, department, slot, details, status, open_key, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := target.ExecContext(ctx, target.Rebind(query),
		conflict.ID, conflict.Type, conflict.Severity, conflict.Resource, conflict.Department,
		conflict.Slot, conflict.Details, conflict.Status, conflict.OpenKey(), conflict.CreatedAt,
	); err != nil {
		return fmt.Errorf("create conflict: %w", err)
	}
	return nil
}

// AddRequest appends an OPEN request to a conflict.
func (r *ConflictRepository) AddRequest(ctx context.Context, exec sqlx.ExtContext, req *models.ConflictRequest) error {
	target := r.exec(exec)
	if req.ID == "" {
		seq, err := nextSequence(ctx, target, "conflict_request")
		if err != nil {
			return err
		}
		req.ID = fmt.Sprintf("CREQ-%d", seq)
	}
	req.Status = models.ConflictStatusOpen
	req.Version = 1
	const query = `INSERT INTO conflict_requests (id, conflict_id, booking_id, student_id, course, slot, status, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := target.ExecContext(ctx, target.Rebind(query),
		req.ID, req.ConflictID, req.BookingID, req.StudentID, req.Course, req.Slot, req.Status, req.Version,
	); err != nil {
		return fmt.Errorf("add conflict request: %w", err)
	}
	return nil
}

// GetByID fetches a conflict with its requests; sql.ErrNoRows when absent.
func (r *ConflictRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Conflict, error) {
	target := r.exec(exec)
	var conflict models.Conflict
	query := target.Rebind(`SELECT ` + conflictColumns + ` FROM conflicts WHERE id = ?`)
	if err := sqlx.GetContext(ctx, target, &conflict, query, id); err != nil {
		return nil, err
	}
	list := []models.Conflict{conflict}
	if err := r.attachRequests(ctx, target, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// GetRequest fetches one conflict request; sql.ErrNoRows when absent.
func (r *ConflictRepository) GetRequest(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ConflictRequest, error) {
	target := r.exec(exec)
	var req models.ConflictRequest
	query := target.Rebind(`SELECT ` + conflictRequestColumns + ` FROM conflict_requests WHERE id = ?`)
	if err := sqlx.GetContext(ctx, target, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ResolveRequest closes an OPEN request guarded by its version. resolvedBy may be empty
// for system resolutions.
func (r *ConflictRepository) ResolveRequest(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int64, resolution, resolvedBy string, at time.Time) error {
	target := r.exec(exec)
	var by interface{}
	if resolvedBy != "" {
		by = resolvedBy
	}
	const query = `UPDATE conflict_requests
SET status = ?, resolution = ?, resolved_by = ?, resolved_at = ?, version = version + 1
WHERE id = ? AND version = ? AND status = ?`
	res, err := target.ExecContext(ctx, target.Rebind(query),
		models.ConflictStatusResolved, resolution, by, at, id, expectedVersion, models.ConflictStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("resolve conflict request: %w", err)
	}
	return expectOneRow(res, "conflict request update")
}

// CloseIfComplete resolves the conflict once none of its requests is OPEN and frees
// its open key. It reports whether the conflict was closed by this call.
func (r *ConflictRepository) CloseIfComplete(ctx context.Context, exec sqlx.ExtContext, conflictID string, at time.Time) (bool, error) {
	target := r.exec(exec)
	const query = `UPDATE conflicts SET status = ?, open_key = NULL, resolved_at = ?
WHERE id = ? AND status = ?
AND NOT EXISTS (SELECT 1 FROM conflict_requests WHERE conflict_id = ? AND status = ?)`
	res, err := target.ExecContext(ctx, target.Rebind(query),
		models.ConflictStatusResolved, at, conflictID, models.ConflictStatusOpen,
		conflictID, models.ConflictStatusOpen,
	)
	if err != nil {
		return false, fmt.Errorf("close conflict: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check conflict close rows: %w", err)
	}
	return rows > 0, nil
}

// UpdateSummary refreshes the derived fields of an OPEN conflict after a rescan.
func (r *ConflictRepository) UpdateSummary(ctx context.Context, exec sqlx.ExtContext, conflict *models.Conflict) error {
	target := r.exec(exec)
	const query = `UPDATE conflicts SET severity = ?, department = ?, slot = ?, details = ?
WHERE id = ? AND status = ?`
	res, err := target.ExecContext(ctx, target.Rebind(query),
		conflict.Severity, conflict.Department, conflict.Slot, conflict.Details, conflict.ID, models.ConflictStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("update conflict summary: %w", err)
	}
	return expectOneRow(res, "conflict summary")
}

// ListOpen returns every OPEN conflict with its requests.
func (r *ConflictRepository) ListOpen(ctx context.Context, exec sqlx.ExtContext) ([]models.Conflict, error) {
	target := r.exec(exec)
	var conflicts []models.Conflict
	query := target.Rebind(`SELECT ` + conflictColumns + ` FROM conflicts WHERE status = ? ORDER BY created_at, id`)
	if err := sqlx.SelectContext(ctx, target, &conflicts, query, models.ConflictStatusOpen); err != nil {
		return nil, fmt.Errorf("list open conflicts: %w", err)
	}
	if err := r.attachRequests(ctx, target, conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// ResolvedBookings returns, per conflict key and conflict id, the bookings a
// coordinator already resolved in that conflict. System (EXTERNAL) resolutions
// are not included.
func (r *ConflictRepository) ResolvedBookings(ctx context.Context, exec sqlx.ExtContext, bookingIDs []string) (map[string]map[string]map[string]bool, error) {
	result := make(map[string]map[string]map[string]bool)
	if len(bookingIDs) == 0 {
		return result, nil
	}
	target := r.exec(exec)
	query, args, err := sqlx.In(`SELECT c.type, c.resource, r.conflict_id, r.booking_id
FROM conflict_requests r JOIN conflicts c ON c.id = r.conflict_id
WHERE r.status = ? AND r.resolution <> ? AND r.booking_id IN (?)`,
		models.ConflictStatusResolved, models.ResolutionExternal, bookingIDs)
	if err != nil {
		return nil, fmt.Errorf("build resolved bookings query: %w", err)
	}
	var rows []struct {
		Type       models.ConflictType `db:"type"`
		Resource   string              `db:"resource"`
		ConflictID string              `db:"conflict_id"`
		BookingID  string              `db:"booking_id"`
	}
	if err := sqlx.SelectContext(ctx, target, &rows, target.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list resolved bookings: %w", err)
	}
	for _, row := range rows {
		key := models.ConflictKey(row.Type, row.Resource)
		if result[key] == nil {
			result[key] = make(map[string]map[string]bool)
		}
		if result[key][row.ConflictID] == nil {
			result[key][row.ConflictID] = make(map[string]bool)
		}
		result[key][row.ConflictID][row.BookingID] = true
	}
	return result, nil
}

// List returns conflicts matching the filter, newest first, with their requests.
func (r *ConflictRepository) List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + conflictColumns + ` FROM conflicts`)

	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if filter.Department != "" {
		args = append(args, strings.ToLower(filter.Department))
		conditions = append(conditions, "LOWER(department) = ?")
	}
	if filter.Resource != "" {
		args = append(args, filter.Resource)
		conditions = append(conditions, "resource = ?")
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, "type = ?")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, "status = ?")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	limit, offset := pageWindow(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, r.db.Rebind(builder.String()), args...); err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	if err := r.attachRequests(ctx, r.db, conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *ConflictRepository) attachRequests(ctx context.Context, exec sqlx.ExtContext, conflicts []models.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]string, len(conflicts))
	for i := range conflicts {
		ids[i] = conflicts[i].ID
		conflicts[i].Requests = []models.ConflictRequest{}
	}
	query, args, err := sqlx.In(`SELECT `+conflictRequestColumns+` FROM conflict_requests WHERE conflict_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("build conflict requests query: %w", err)
	}
	var requests []models.ConflictRequest
	if err := sqlx.SelectContext(ctx, exec, &requests, exec.Rebind(query), args...); err != nil {
		return fmt.Errorf("load conflict requests: %w", err)
	}
	index := make(map[string]int, len(conflicts))
	for i := range conflicts {
		index[conflicts[i].ID] = i
	}
	for _, req := range requests {
		if i, ok := index[req.ConflictID]; ok {
			conflicts[i].Requests = append(conflicts[i].Requests, req)
		}
	}
	return nil
}
