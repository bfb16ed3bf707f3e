package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit action labels.
const (
	AuditActionManualAssignment  = "Manual assignment"
	AuditActionSuggestionStatus  = "Suggestion status change"
	AuditActionConflictResolved  = "Conflict request resolved"
	AuditResourceAssignment      = "ManualAssignment"
	AuditResourceSuggestion      = "MatchingSuggestion"
	AuditResourceConflictRequest = "ConflictRequest"
)

// AuditLog is an append-only record of a completed action.
type AuditLog struct {
	ID           string         `db:"id" json:"id"`
	Seq          int64          `db:"seq" json:"-"`
	ActorID      string         `db:"actor_id" json:"actorId"`
	ActorRole    UserRole       `db:"actor_role" json:"actorRole"`
	Action       string         `db:"action" json:"action"`
	ResourceType string         `db:"resource_type" json:"resourceType"`
	ResourceID   string         `db:"resource_id" json:"resourceId"`
	Details      types.JSONText `db:"details" json:"details"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// AuditFilter constrains audit listings. Action and Resource match substrings.
type AuditFilter struct {
	ActorID  string
	Action   string
	Resource string
	Since    *time.Time
	Limit    int
	Offset   int
}
