// Package session owns the check-in/check-out presence state machine.
//
// Per actor the machine has two states: no active session, or an active
// session at exactly one site. The open-session slot is the only shared
// mutable resource; every transition that touches it runs inside a single
// store transaction that re-reads the slot before writing.
package session

import (
	"errors"
	"fmt"
	"time"
)

// GeofenceRadiusMeters is the acceptance radius around a site's coordinates.
const GeofenceRadiusMeters = 100.0

// Action is a presence transition kind.
type Action string

const (
	ActionCheckin  Action = "checkin"
	ActionCheckout Action = "checkout"
)

// Record is one row of the append-only transition log.
type Record struct {
	ID            string    `json:"id"`
	ActorID       string    `json:"actor_id"`
	SiteID        int64     `json:"site_id"`
	Action        Action    `json:"action"`
	At            time.Time `json:"at"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	ActiveSession bool      `json:"active_session"`
}

// Visit pairs a check-in with its eventual check-out.
// Lifecycle: open (checkout fields nil) -> closed (duration computed); a
// closed visit is never reopened.
type Visit struct {
	ID              string     `json:"id"`
	ActorID         string     `json:"actor_id"`
	SiteID          int64      `json:"site_id"`
	CheckinAt       time.Time  `json:"checkin_at"`
	CheckinLat      float64    `json:"checkin_lat"`
	CheckinLng      float64    `json:"checkin_lng"`
	CheckoutAt      *time.Time `json:"checkout_at,omitempty"`
	CheckoutLat     *float64   `json:"checkout_lat,omitempty"`
	CheckoutLng     *float64   `json:"checkout_lng,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
}

// Transition is the outcome of a successful state change.
type Transition struct {
	Action          Action    `json:"status"`
	SiteID          int64     `json:"site_id"`
	VisitID         string    `json:"visit_id"`
	At              time.Time `json:"timestamp"`
	DurationMinutes *int64    `json:"duration_minutes,omitempty"`
}

var (
	ErrInvalidAction     = errors.New("session: action must be checkin or checkout")
	ErrMissingLocation   = errors.New("session: device coordinates are required")
	ErrAlreadyCheckedIn  = errors.New("session: an active session already exists")
	ErrWrongSiteCheckout = errors.New("session: checkout site differs from the open session")
	ErrNoActiveSession   = errors.New("session: no active session to check out of")
	ErrNotAssigned       = errors.New("session: actor is not assigned to this site")
)

// ErrOutOfRange is the sentinel matched by OutOfRangeError.
var ErrOutOfRange = errors.New("session: outside site geofence")

// OutOfRangeError carries the computed distance for operator diagnosis.
type OutOfRangeError struct {
	DistanceMeters float64
	LimitMeters    float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("session: %.1f m from site, geofence is %.0f m", e.DistanceMeters, e.LimitMeters)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// durationMinutes rounds a visit span to whole minutes.
func durationMinutes(in, out time.Time) int64 {
	secs := out.Sub(in).Seconds()
	m := secs / 60
	if m < 0 {
		return 0
	}
	return int64(m + 0.5)
}
