package models

import "time"

// ManualAssignment is a coordinator override. Rows are never updated or deleted.
type ManualAssignment struct {
	ID                      string    `db:"id" json:"id"`
	StudentID               string    `db:"student_id" json:"studentId"`
	TutorID                 string    `db:"tutor_id" json:"tutorId"`
	CoordinatorID           string    `db:"coordinator_id" json:"coordinatorId"`
	Reason                  string    `db:"reason" json:"reason"`
	Course                  *string   `db:"course" json:"course,omitempty"`
	Slot                    *string   `db:"slot" json:"slot,omitempty"`
	OriginSuggestionID      *string   `db:"origin_suggestion_id" json:"originSuggestionId,omitempty"`
	OriginConflictRequestID *string   `db:"origin_conflict_request_id" json:"originConflictRequestId,omitempty"`
	CreatedAt               time.Time `db:"created_at" json:"createdAt"`
}

// AssignmentFilter constrains assignment listings.
type AssignmentFilter struct {
	StudentID     string
	TutorID       string
	CoordinatorID string
	Limit         int
	Offset        int
}
