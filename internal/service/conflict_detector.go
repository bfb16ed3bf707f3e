package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/config"
)

// Quota periods.
const (
	QuotaPeriodWeek  = "week"
	QuotaPeriodMonth = "month"
)

// DefaultConflictConfig mirrors the configuration defaults.
func DefaultConflictConfig() config.ConflictConfig {
	return config.ConflictConfig{StudentQuota: 3, QuotaPeriod: QuotaPeriodWeek}
}

// DetectedConflict is one contention group found in a booking snapshot.
type DetectedConflict struct {
	Type       models.ConflictType
	Severity   models.ConflictSeverity
	Resource   string
	Department string
	Slot       string
	Details    string
	Bookings   []models.Booking
}

// Key returns the (type, resource) identity.
func (d DetectedConflict) Key() string {
	return models.ConflictKey(d.Type, d.Resource)
}

// ConflictDetector finds resource contention in a booking snapshot. It has no state.
type ConflictDetector struct {
	quota  int
	period string
}

// NewConflictDetector builds a detector. A non-positive quota disables quota checks.
func NewConflictDetector(cfg config.ConflictConfig) *ConflictDetector {
	period := cfg.QuotaPeriod
	if period != QuotaPeriodMonth {
		period = QuotaPeriodWeek
	}
	return &ConflictDetector{quota: cfg.StudentQuota, period: period}
}

// Detect returns tutor double bookings, room clashes and quota overruns, ordered by
// type and then resource. now selects the quota period. Repeated ids and unknown
// statuses are skipped.
func (d *ConflictDetector) Detect(bookings []models.Booking, now time.Time) []DetectedConflict {
	active := make([]models.Booking, 0, len(bookings))
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if b.ID == "" {
			continue
		}
		// first occurrence of an id wins
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		status, ok := models.ParseBookingStatus(string(b.Status))
		if !ok {
			continue
		}
		b.Status = status
		if !b.Active() {
			continue
		}
		active = append(active, b)
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].Start.Equal(active[j].Start) {
			return active[i].Start.Before(active[j].Start)
		}
		return active[i].ID < active[j].ID
	})

	detected := make([]DetectedConflict, 0)
	detected = append(detected, overlapGroups(active, models.ConflictTypeTutorDoubleBooking, func(b models.Booking) string { return b.TutorID })...)
	detected = append(detected, overlapGroups(active, models.ConflictTypeRoom, func(b models.Booking) string { return b.RoomID })...)
	detected = append(detected, d.quotaGroups(active, now)...)
	return detected
}

// overlapGroups collapses every booking that overlaps at least one other booking of
// the same resource into a single conflict for that resource.
func overlapGroups(bookings []models.Booking, conflictType models.ConflictType, resourceOf func(models.Booking) string) []DetectedConflict {
	byResource := make(map[string][]models.Booking)
	resources := make([]string, 0)
	for _, b := range bookings {
		resource := resourceOf(b)
		if resource == "" {
			continue
		}
		if _, ok := byResource[resource]; !ok {
			resources = append(resources, resource)
		}
		byResource[resource] = append(byResource[resource], b)
	}
	sort.Strings(resources)

	result := make([]DetectedConflict, 0)
	for _, resource := range resources {
		group := byResource[resource]
		if len(group) < 2 {
			continue
		}
		contended := make([]models.Booking, 0, len(group))
		for i, b := range group {
			for j, other := range group {
				if i != j && b.Window().Overlaps(other.Window()) {
					contended = append(contended, b)
					break
				}
			}
		}
		if len(contended) == 0 {
			continue
		}
		label := "Tutor"
		if conflictType == models.ConflictTypeRoom {
			label = "Room"
		}
		result = append(result, DetectedConflict{
			Type:       conflictType,
			Severity:   overlapSeverity(contended),
			Resource:   resource,
			Department: firstDepartment(contended),
			Slot:       contended[0].SlotLabel(),
			Details:    fmt.Sprintf("%s %s has %d overlapping bookings", label, resource, len(contended)),
			Bookings:   contended,
		})
	}
	return result
}

func (d *ConflictDetector) quotaGroups(bookings []models.Booking, now time.Time) []DetectedConflict {
	if d.quota <= 0 {
		return nil
	}
	start, end := d.periodBounds(now)
	byStudent := make(map[string][]models.Booking)
	students := make([]string, 0)
	for _, b := range bookings {
		if b.StudentID == "" || b.Status != models.BookingStatusConfirmed {
			continue
		}
		if b.Start.Before(start) || !b.Start.Before(end) {
			continue
		}
		if _, ok := byStudent[b.StudentID]; !ok {
			students = append(students, b.StudentID)
		}
		byStudent[b.StudentID] = append(byStudent[b.StudentID], b)
	}
	sort.Strings(students)

	result := make([]DetectedConflict, 0)
	for _, student := range students {
		sessions := byStudent[student]
		if len(sessions) <= d.quota {
			continue
		}
		over := append([]models.Booking(nil), sessions[d.quota:]...)
		result = append(result, DetectedConflict{
			Type:       models.ConflictTypeStudentQuota,
			Severity:   models.SeverityLow,
			Resource:   student,
			Department: firstDepartment(over),
			Slot:       fmt.Sprintf("%s of %s", periodName(d.period), start.Format("2006-01-02")),
			Details:    fmt.Sprintf("Student %s has %d confirmed sessions this %s (quota %d)", student, len(sessions), d.period, d.quota),
			Bookings:   over,
		})
	}
	return result
}

// periodBounds returns [start, end) of the ISO week or calendar month holding now, in UTC.
func (d *ConflictDetector) periodBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	if d.period == QuotaPeriodMonth {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	offset := (int(now.Weekday()) + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 7)
}

func periodName(period string) string {
	if period == QuotaPeriodMonth {
		return "Month"
	}
	return "Week"
}

func overlapSeverity(bookings []models.Booking) models.ConflictSeverity {
	for _, b := range bookings {
		if b.Status == models.BookingStatusPending {
			return models.SeverityMedium
		}
	}
	return models.SeverityHigh
}

func firstDepartment(bookings []models.Booking) string {
	for _, b := range bookings {
		if b.Department != "" {
			return b.Department
		}
	}
	return ""
}
