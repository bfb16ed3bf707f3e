package dto

import (
	"strings"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// GenerateSuggestionRequest asks the engine to rank tutors for one student request.
// Candidates is optional; the stored tutor directory is used when it is empty.
type GenerateSuggestionRequest struct {
	StudentID        string                  `json:"studentId" validate:"required"`
	Course           string                  `json:"course" validate:"required"`
	Subject          string                  `json:"subject"`
	PreferredWindows []models.TimeWindow     `json:"preferredWindows"`
	Note             string                  `json:"note"`
	SupersedesID     string                  `json:"supersedesId"`
	Candidates       []models.TutorCandidate `json:"candidates"`
}

// Normalize trims identifiers in place.
func (r *GenerateSuggestionRequest) Normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Course = strings.ToUpper(strings.TrimSpace(r.Course))
	r.Subject = strings.TrimSpace(r.Subject)
	r.SupersedesID = strings.TrimSpace(r.SupersedesID)
}

// TransitionSuggestionRequest moves a suggestion to a new status.
type TransitionSuggestionRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateManualAssignmentRequest is the override payload.
type CreateManualAssignmentRequest struct {
	StudentID               string  `json:"studentId" validate:"required"`
	TutorID                 string  `json:"tutorId" validate:"required"`
	Reason                  string  `json:"reason" validate:"required"`
	Course                  *string `json:"course,omitempty"`
	Slot                    *string `json:"slot,omitempty"`
	OriginSuggestionID      *string `json:"originSuggestionId,omitempty"`
	OriginConflictRequestID *string `json:"originConflictRequestId,omitempty"`
}

// Normalize trims every field; blank optionals become nil.
func (r *CreateManualAssignmentRequest) Normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.TutorID = strings.TrimSpace(r.TutorID)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Course = trimOptional(r.Course)
	r.Slot = trimOptional(r.Slot)
	r.OriginSuggestionID = trimOptional(r.OriginSuggestionID)
	r.OriginConflictRequestID = trimOptional(r.OriginConflictRequestID)
}

// ResolveConflictRequestInput closes one conflict request. A blank resolution gets
// the default text.
type ResolveConflictRequestInput struct {
	Resolution string `json:"resolution"`
}

// ScanConflictsRequest carries an explicit booking snapshot. An empty body scans the
// stored snapshot instead.
type ScanConflictsRequest struct {
	Bookings []models.Booking `json:"bookings"`
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
