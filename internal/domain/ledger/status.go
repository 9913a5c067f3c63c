package ledger

import (
	"strings"
	"time"
)

// ResolvedStatus is the status shown to callers. It is computed on every read.
type ResolvedStatus string

const (
	StatusPaid    ResolvedStatus = "Paid"
	StatusUnpaid  ResolvedStatus = "Unpaid"
	StatusOverdue ResolvedStatus = "Overdue"
	StatusPending ResolvedStatus = "Pending"
)

// ParseResolvedStatus parses a status filter value.
func ParseResolvedStatus(raw string) (ResolvedStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid":
		return StatusPaid, nil
	case "unpaid":
		return StatusUnpaid, nil
	case "overdue":
		return StatusOverdue, nil
	case "pending":
		return StatusPending, nil
	}
	return "", NewValidationError("status", "must be one of Paid, Unpaid, Overdue, Pending")
}

// Resolve derives the effective status of e on the given day.
// Paid is terminal; Pending salaries pass through unchanged.
func Resolve(e *Entry, today time.Time) ResolvedStatus {
	switch e.StoredStatus {
	case StoredPaid:
		return StatusPaid
	case StoredPending:
		return StatusPending
	}
	if e.DueDate == nil {
		return StatusUnpaid
	}
	if DateOnly(today).After(DateOnly(*e.DueDate)) {
		return StatusOverdue
	}
	return StatusUnpaid
}

// ValidateTransition checks a manually requested status for e.
// Overdue is derived and can never be requested.
func ValidateTransition(e *Entry, requested string) (StoredStatus, error) {
	return ParseStoredStatus(e.Kind, requested)
}

// DateOnly truncates t to its calendar date, keeping the wall-clock day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Clock supplies "today" for status resolution.
type Clock interface {
	Today() time.Time
	Now() time.Time
}

// LocationClock reads the system clock in a fixed location.
type LocationClock struct {
	Location *time.Location
}

func (c LocationClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

func (c LocationClock) Today() time.Time {
	return DateOnly(c.Now())
}

// FixedClock always returns the same instant. Used by tests and the CLI's --as-of flag.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time   { return c.At }
func (c FixedClock) Today() time.Time { return DateOnly(c.At) }
