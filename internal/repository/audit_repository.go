package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// AuditRepository appends and reads audit entries. There is no update or delete.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `seq, id, actor_id, actor_role, action, resource_type, resource_id, details, created_at`

func (r *AuditRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends an entry. Ids are AUD-<seq> where seq orders entries by write.
func (r *AuditRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	target := r.exec(exec)
	seq, err := nextSequence(ctx, target, "audit")
	if err != nil {
		return err
	}
	entry.Seq = seq
	entry.ID = fmt.Sprintf("AUD-%d", seq)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Details) == 0 {
		entry.Details = types.JSONText(`{}`)
	}
	const query = `INSERT INTO audit_logs (` + auditColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := target.ExecContext(ctx, target.Rebind(query),
		entry.Seq, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.ResourceType,
		entry.ResourceID, entry.Details, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns entries newest first. Action and resource match case-insensitive substrings.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + auditColumns + ` FROM audit_logs`)

	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, "actor_id = ?")
	}
	if filter.Action != "" {
		args = append(args, containsPattern(filter.Action))
		conditions = append(conditions, `LOWER(action) LIKE ? ESCAPE '\'`)
	}
	if filter.Resource != "" {
		pattern := containsPattern(filter.Resource)
		args = append(args, pattern, pattern)
		conditions = append(conditions, `(LOWER(resource_type) LIKE ? ESCAPE '\' OR LOWER(resource_id) LIKE ? ESCAPE '\')`)
	}
	if filter.Since != nil {
		args = append(args, filter.Since.UTC())
		conditions = append(conditions, "created_at >= ?")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY seq DESC")
	limit, offset := pageWindow(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(builder.String()), args...); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return entries, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lower-case substring LIKE pattern with wildcards escaped.
func containsPattern(raw string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(raw)) + "%"
}
