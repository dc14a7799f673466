// Package appointments implements slot derivation, atomic booking and the
// appointment status lifecycle.
package appointments

import (
	"strings"
	"time"
)

// DateLayout is the wire format for appointment dates.
const DateLayout = "2006-01-02"

// Status is an appointment lifecycle state.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// AllStatuses lists every lifecycle state.
var AllStatuses = []Status{StatusBooked, StatusConfirmed, StatusCancelled, StatusCompleted}

// ParseStatus normalizes a status string, returning false for unknown values.
func ParseStatus(s string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusBooked, StatusConfirmed, StatusCancelled, StatusCompleted:
		return status, true
	default:
		return "", false
	}
}

// Occupies reports whether an appointment in this status holds its slot.
// Only cancellation frees the slot for rebooking.
func (s Status) Occupies() bool { return s != StatusCancelled }

// Appointment is one booked visit. Doctor name and specialty are snapshotted
// at booking time so later doctor edits do not rewrite history.
type Appointment struct {
	ID           int64     `json:"id"`
	DoctorID     int64     `json:"doctor_id"`
	DoctorName   string    `json:"doctor"`
	Specialty    string    `json:"specialty"`
	PatientName  string    `json:"name"`
	PatientEmail string    `json:"email"`
	PatientPhone string    `json:"phone"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ParseDate parses a wire-format date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
