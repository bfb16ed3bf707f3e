package models

import (
	"strings"
	"time"
)

// BookingStatus mirrors the booking collaborator's states.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// ParseBookingStatus normalizes case and whitespace. Blank means CONFIRMED; any other
// value outside the known states is rejected.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case "":
		return BookingStatusConfirmed, true
	case BookingStatusConfirmed, BookingStatusPending, BookingStatusCancelled:
		return status, true
	}
	return "", false
}

// Booking is one row of the read-only booking snapshot.
type Booking struct {
	ID         string        `db:"id" json:"id" yaml:"id"`
	TutorID    string        `db:"tutor_id" json:"tutorId" yaml:"tutorId"`
	RoomID     string        `db:"room_id" json:"roomId,omitempty" yaml:"roomId"`
	StudentID  string        `db:"student_id" json:"studentId" yaml:"studentId"`
	Course     string        `db:"course" json:"course,omitempty" yaml:"course"`
	Department string        `db:"department" json:"department,omitempty" yaml:"department"`
	Start      time.Time     `db:"start_at" json:"start" yaml:"start"`
	End        time.Time     `db:"end_at" json:"end" yaml:"end"`
	Status     BookingStatus `db:"status" json:"status" yaml:"status"`
}

// Window returns the booking interval.
func (b Booking) Window() TimeWindow {
	return TimeWindow{Start: b.Start, End: b.End}
}

// Active reports whether the detector should consider the booking.
func (b Booking) Active() bool {
	return b.Status != BookingStatusCancelled && b.Window().Valid()
}

// SlotLabel renders the booking slot the way dashboards show it, e.g. "Wed 14:00 · Room B4-205".
func (b Booking) SlotLabel() string {
	label := b.Start.UTC().Format("Mon 15:04")
	if b.RoomID != "" {
		label += " · Room " + b.RoomID
	}
	return label
}
