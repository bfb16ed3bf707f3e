package models

import (
	"sort"
	"time"
)

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Valid reports whether the window has positive length.
func (w TimeWindow) Valid() bool {
	return w.End.After(w.Start)
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	if !w.Valid() {
		return 0
	}
	return w.End.Sub(w.Start)
}

// Overlaps uses the strict test startA < endB && startB < endA.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// MergeWindows drops invalid windows and unions the rest into sorted, disjoint windows.
func MergeWindows(windows []TimeWindow) []TimeWindow {
	valid := make([]TimeWindow, 0, len(windows))
	for _, w := range windows {
		if w.Valid() {
			valid = append(valid, w)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	merged := make([]TimeWindow, 0, len(valid))
	for _, w := range valid {
		if n := len(merged); n > 0 && !w.Start.After(merged[n-1].End) {
			if w.End.After(merged[n-1].End) {
				merged[n-1].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// StudentRequest is a student's ask for tutoring. It is never edited; a
// resubmission is a new request pointing at the one it supersedes.
type StudentRequest struct {
	ID               string       `json:"id" yaml:"id"`
	StudentID        string       `json:"studentId" yaml:"studentId"`
	Course           string       `json:"course" yaml:"course"`
	Subject          string       `json:"subject,omitempty" yaml:"subject"`
	PreferredWindows []TimeWindow `json:"preferredWindows,omitempty" yaml:"preferredWindows"`
	Note             string       `json:"note,omitempty" yaml:"note"`
	SupersedesID     string       `json:"supersedesId,omitempty" yaml:"supersedesId"`
	CreatedAt        time.Time    `json:"createdAt" yaml:"createdAt"`
}

// TutorCandidate is a read-only directory snapshot of one tutor.
type TutorCandidate struct {
	ID            string       `db:"id" json:"id" yaml:"id"`
	Name          string       `db:"name" json:"name,omitempty" yaml:"name"`
	Department    string       `db:"department" json:"department,omitempty" yaml:"department"`
	Subjects      []string     `db:"-" json:"subjects" yaml:"subjects"`
	Availability  []TimeWindow `db:"-" json:"availability,omitempty" yaml:"availability"`
	Workload      int          `db:"workload" json:"workload" yaml:"workload"`
	AverageRating float64      `db:"average_rating" json:"averageRating" yaml:"averageRating"`
}

// RankedTutor is one scored entry inside a suggestion.
type RankedTutor struct {
	TutorID        string   `json:"tutorId"`
	Score          float64  `json:"score"`
	Justifications []string `json:"justifications"`
}

// SuggestionStatus captures the suggestion lifecycle.
type SuggestionStatus string

const (
	SuggestionStatusNew      SuggestionStatus = "NEW"
	SuggestionStatusReviewed SuggestionStatus = "REVIEWED"
	SuggestionStatusAssigned SuggestionStatus = "ASSIGNED"
	SuggestionStatusRejected SuggestionStatus = "REJECTED"
)

// IsValid reports whether s is a known status.
func (s SuggestionStatus) IsValid() bool {
	switch s {
	case SuggestionStatusNew, SuggestionStatusReviewed, SuggestionStatusAssigned, SuggestionStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further change is accepted.
func (s SuggestionStatus) IsTerminal() bool {
	return s == SuggestionStatusAssigned || s == SuggestionStatusRejected
}

var suggestionEdges = map[SuggestionStatus][]SuggestionStatus{
	SuggestionStatusNew:      {SuggestionStatusReviewed, SuggestionStatusRejected},
	SuggestionStatusReviewed: {SuggestionStatusAssigned, SuggestionStatusRejected},
}

// CanTransitionTo reports whether from -> to is an edge of the lifecycle.
func (s SuggestionStatus) CanTransitionTo(to SuggestionStatus) bool {
	for _, next := range suggestionEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// MatchingSuggestion is a ranked proposal for one request.
type MatchingSuggestion struct {
	ID           string           `json:"suggestionId"`
	Status       SuggestionStatus `json:"status"`
	StudentID    string           `json:"studentId"`
	Course       string           `json:"course"`
	Request      StudentRequest   `json:"request"`
	RankedTutors []RankedTutor    `json:"rankedTutors"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// TopTutor returns the best ranked tutor, if any.
func (s *MatchingSuggestion) TopTutor() (RankedTutor, bool) {
	if s == nil || len(s.RankedTutors) == 0 {
		return RankedTutor{}, false
	}
	return s.RankedTutors[0], true
}

// SuggestionFilter constrains suggestion listings.
type SuggestionFilter struct {
	Status    []SuggestionStatus
	StudentID string
	Course    string
	Limit     int
	Offset    int
}
