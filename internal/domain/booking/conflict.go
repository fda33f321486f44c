package booking

import (
	"time"

	"github.com/google/uuid"
)

// ConflictWindowMinutes is the exclusion radius around a candidate time: a
// doctor may not hold two appointments on the same date whose times are
// within this many minutes of each other, endpoints included.
const ConflictWindowMinutes = 60

// ConflictWindow returns the inclusive acceptance window [t-60min, t+60min]
// for a candidate wall-clock time, both bounds formatted as times of day.
//
// The arithmetic is done purely in time-of-day space: near midnight the
// window wraps without any date rollover, producing lo > hi, and a
// lo <= t <= hi probe then matches nothing. Cross-midnight guarding is a
// known gap (see DESIGN.md); callers must not assume the window is
// well-formed for times within an hour of midnight.
func ConflictWindow(clock string) (lo, hi string, err error) {
	c, err := ParseClock(clock)
	if err != nil {
		return "", "", err
	}
	t, _ := time.Parse(ClockFormat, c)
	d := ConflictWindowMinutes * time.Minute
	return t.Add(-d).Format(ClockFormat), t.Add(d).Format(ClockFormat), nil
}

// InWindow reports whether clock falls inside the inclusive [lo, hi] window.
// Fixed-width HH:MM:SS strings order lexicographically exactly as times of
// day, so plain string comparison is sufficient.
func InWindow(clock, lo, hi string) bool {
	return lo <= clock && clock <= hi
}

// Conflicts reports whether an existing appointment blocks the candidate:
// same doctor, same date, existing time inside the candidate's window, and
// not the record being updated itself.
func Conflicts(existing, candidate *Appointment, excludeID uuid.UUID) bool {
	if existing.ID == excludeID {
		return false
	}
	if existing.DoctorID != candidate.DoctorID || existing.Date != candidate.Date {
		return false
	}
	lo, hi, err := ConflictWindow(candidate.Time)
	if err != nil {
		return false
	}
	return InWindow(existing.Time, lo, hi)
}
