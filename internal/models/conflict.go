package models

import "time"

// ConflictType enumerates detected contention kinds.
type ConflictType string

const (
	ConflictTypeTutorDoubleBooking ConflictType = "TUTOR_DOUBLE_BOOKING"
	ConflictTypeRoom               ConflictType = "ROOM_CONFLICT"
	ConflictTypeStudentQuota       ConflictType = "STUDENT_QUOTA"
)

// IsValid reports whether t is a known type.
func (t ConflictType) IsValid() bool {
	switch t {
	case ConflictTypeTutorDoubleBooking, ConflictTypeRoom, ConflictTypeStudentQuota:
		return true
	}
	return false
}

// ConflictSeverity ranks how urgent a conflict is.
type ConflictSeverity string

const (
	SeverityHigh   ConflictSeverity = "HIGH"
	SeverityMedium ConflictSeverity = "MEDIUM"
	SeverityLow    ConflictSeverity = "LOW"
)

// ConflictStatus is shared by conflicts and their requests.
type ConflictStatus string

const (
	ConflictStatusOpen     ConflictStatus = "OPEN"
	ConflictStatusResolved ConflictStatus = "RESOLVED"
)

// ResolutionExternal marks requests closed because the booking left the snapshot group.
const ResolutionExternal = "EXTERNAL"

// Conflict groups every booking contending for one resource.
type Conflict struct {
	ID         string            `db:"id" json:"id"`
	Type       ConflictType      `db:"type" json:"type"`
	Severity   ConflictSeverity  `db:"severity" json:"severity"`
	Resource   string            `db:"resource" json:"resource"`
	Department string            `db:"department" json:"department,omitempty"`
	Slot       string            `db:"slot" json:"slot"`
	Details    string            `db:"details" json:"details"`
	Status     ConflictStatus    `db:"status" json:"status"`
	CreatedAt  time.Time         `db:"created_at" json:"createdAt"`
	ResolvedAt *time.Time        `db:"resolved_at" json:"resolvedAt,omitempty"`
	Requests   []ConflictRequest `db:"-" json:"requests"`
}

// OpenKey identifies the single open conflict allowed per type and resource.
func (c *Conflict) OpenKey() string {
	return ConflictKey(c.Type, c.Resource)
}

// ConflictKey builds the (type, resource) identity.
func ConflictKey(t ConflictType, resource string) string {
	return string(t) + "|" + resource
}

// AllResolved reports whether every request is closed.
func (c *Conflict) AllResolved() bool {
	for _, r := range c.Requests {
		if r.Status != ConflictStatusResolved {
			return false
		}
	}
	return true
}

// BookingIDs returns the booking ids of the requests with the given status ("" for all).
func (c *Conflict) BookingIDs(status ConflictStatus) []string {
	ids := make([]string, 0, len(c.Requests))
	for _, r := range c.Requests {
		if status == "" || r.Status == status {
			ids = append(ids, r.BookingID)
		}
	}
	return ids
}

// ConflictRequest ties one contended booking to its conflict.
type ConflictRequest struct {
	ID         string         `db:"id" json:"id"`
	ConflictID string         `db:"conflict_id" json:"conflictId"`
	BookingID  string         `db:"booking_id" json:"bookingId"`
	StudentID  string         `db:"student_id" json:"studentId"`
	Course     string         `db:"course" json:"course,omitempty"`
	Slot       string         `db:"slot" json:"preferredSlot,omitempty"`
	Status     ConflictStatus `db:"status" json:"status"`
	Resolution *string        `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy *string        `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time     `db:"resolved_at" json:"resolvedAt,omitempty"`
	Version    int64          `db:"version" json:"version"`
}

// ConflictFilter constrains conflict listings.
type ConflictFilter struct {
	Department string
	Resource   string
	Type       ConflictType
	Status     ConflictStatus
	Limit      int
	Offset     int
}
