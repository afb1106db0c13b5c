// Package attendance owns daily attendance entries and the shift-conflict
// guard that gates presence-requiring writes.
package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldtrace.org/internal/shift"
)

// Status is a daily attendance code.
type Status string

const (
	StatusPresent Status = "present"
	StatusHalfDay Status = "half_day"
	StatusLeave   Status = "leave"
	StatusHoliday Status = "holiday"
	StatusAbsent  Status = "absent"
	StatusWeekOff Status = "week_off"
)

// RequiresPresence reports whether the status mandates a site and a shift
// window. Non-working codes never block on shift time.
func (s Status) RequiresPresence() bool {
	switch s {
	case StatusPresent, StatusHalfDay:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusHalfDay, StatusLeave, StatusHoliday, StatusAbsent, StatusWeekOff:
		return true
	default:
		return false
	}
}

// Entry is one person's attendance for one date. Several entries per person
// per date are legal as long as presence windows do not overlap.
type Entry struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Status     Status    `json:"status"`
	SiteID     *int64    `json:"site_id,omitempty"`
	ShiftStart *int      `json:"shift_start,omitempty"` // minutes since midnight
	ShiftEnd   *int      `json:"shift_end,omitempty"`
	ShiftID    *string   `json:"shift_id,omitempty"`
	CreatedBy  string    `json:"created_by"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Window returns the entry's shift window, if any.
func (e Entry) Window() (shift.Window, bool) {
	if e.ShiftStart == nil || e.ShiftEnd == nil {
		return shift.Window{}, false
	}
	return shift.Window{Start: *e.ShiftStart, End: *e.ShiftEnd}, true
}

var (
	ErrMissingFields = errors.New("attendance: required fields missing")
	ErrInvalidStatus = errors.New("attendance: unknown status code")
	ErrInvalidWindow = errors.New("attendance: shift window out of range")
	ErrEntryNotFound = errors.New("attendance: entry not found")
)

// ErrTimeConflict is the sentinel matched by ConflictError.
var ErrTimeConflict = errors.New("attendance: shift time conflict")

// ConflictError carries the competing site and window for human-readable
// messaging.
type ConflictError struct {
	SiteID     int64
	SiteName   string
	ShiftStart int
	ShiftEnd   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("attendance: already scheduled at %s from %s to %s",
		e.SiteName, shift.Clock(e.ShiftStart), shift.Clock(e.ShiftEnd))
}

func (e *ConflictError) Is(target error) bool { return target == ErrTimeConflict }

// ValidateDate checks the YYYY-MM-DD form used across the store.
func ValidateDate(date string) error {
	date = strings.TrimSpace(date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrMissingFields, date)
	}
	return nil
}
