package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. New appointments always start as StatusRequested;
// confirmed and denied are terminal by convention.
const (
	StatusRequested = "requested"
	StatusConfirmed = "confirmed"
	StatusDenied    = "denied"
)

var validStatuses = map[string]bool{
	StatusRequested: true,
	StatusConfirmed: true,
	StatusDenied:    true,
}

// Wire formats for the calendar date and wall-clock time fields. Times are
// naive local values; the store compares them without timezone handling.
const (
	DateFormat  = "2006-01-02"
	ClockFormat = "15:04:05"
)

// Appointment maps to the appointments table. Date and Time are kept as
// strings in the wire formats above; the conflict checker and the SQL layer
// both compare them as date and time-of-day values.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Date      string    `db:"date" json:"date"`
	Time      string    `db:"time" json:"time"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParseDate validates a calendar date in DateFormat.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrValidation, s)
	}
	return t.Format(DateFormat), nil
}

// ParseClock validates a wall-clock time, accepting "15:04" or "15:04:05",
// and normalizes it to ClockFormat.
func ParseClock(s string) (string, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ClockFormat), nil
		}
	}
	return "", fmt.Errorf("%w: invalid time %q, want HH:MM or HH:MM:SS", ErrValidation, s)
}
