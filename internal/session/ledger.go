package session

import (
	"context"
	"time"

	"fieldtrace.org/internal/geo"
	"fieldtrace.org/internal/qr"
	"fieldtrace.org/internal/roster"
)

// Ledger orchestrates a site-visit request: resolve the scanned identity,
// authorize the actor, validate the geofence, then hand the transition to
// the store.
type Ledger struct {
	resolver    *qr.Resolver
	assignments roster.AssignmentStore
	store       Store
	now         func() time.Time
}

func NewLedger(sites roster.SiteCatalog, assignments roster.AssignmentStore, store Store) *Ledger {
	return &Ledger{
		resolver:    qr.NewResolver(sites),
		assignments: assignments,
		store:       store,
		now:         time.Now,
	}
}

// VisitRequest is one scan from a supervisor's device.
type VisitRequest struct {
	ActorID  string
	Payload  string
	SiteHint int64
	Lat      *float64
	Lng      *float64
	Action   Action // optional override; empty means infer
}

// VisitResult pairs the transition with the site it happened at.
type VisitResult struct {
	Transition Transition
	Site       roster.Site
}

// RecordVisit performs one presence transition.
func (l *Ledger) RecordVisit(ctx context.Context, req VisitRequest) (VisitResult, error) {
	switch req.Action {
	case "", ActionCheckin, ActionCheckout:
	default:
		return VisitResult{}, ErrInvalidAction
	}
	if req.Lat == nil || req.Lng == nil {
		return VisitResult{}, ErrMissingLocation
	}
	if err := geo.ValidateCoords(*req.Lat, *req.Lng); err != nil {
		return VisitResult{}, err
	}

	site, err := l.resolver.Resolve(ctx, req.Payload, req.SiteHint)
	if err != nil {
		return VisitResult{}, err
	}

	assigned, err := l.assignments.IsAssigned(ctx, req.ActorID, site.ID)
	if err != nil {
		return VisitResult{}, err
	}
	if !assigned {
		return VisitResult{}, ErrNotAssigned
	}

	dist, err := geo.DistanceMeters(*req.Lat, *req.Lng, site.Latitude, site.Longitude)
	if err != nil {
		return VisitResult{}, err
	}
	if dist > GeofenceRadiusMeters {
		return VisitResult{}, &OutOfRangeError{DistanceMeters: dist, LimitMeters: GeofenceRadiusMeters}
	}

	tr, err := l.store.Transition(ctx, req.ActorID, site.ID, req.Action, l.now().UTC(), *req.Lat, *req.Lng)
	if err != nil {
		return VisitResult{}, err
	}
	return VisitResult{Transition: tr, Site: site}, nil
}

// ListVisits returns the actor's visits in the half-open range [from, to).
func (l *Ledger) ListVisits(ctx context.Context, actorID string, from, to time.Time) ([]Visit, error) {
	return l.store.ListVisits(ctx, actorID, from, to)
}

// ActiveVisit returns the actor's open visit, or nil.
func (l *Ledger) ActiveVisit(ctx context.Context, actorID string) (*Visit, error) {
	return l.store.ActiveVisit(ctx, actorID)
}
