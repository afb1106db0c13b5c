package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldtrace.org/internal/ids"
)

// Store persists presence transitions. Transition must be atomic: the
// implementation re-reads the actor's open-session slot, applies the
// state-machine guards and writes the Record/Visit changes as one unit.
// An empty action means "infer from the current state".
type Store interface {
	Transition(ctx context.Context, actorID string, siteID int64, action Action, at time.Time, lat, lng float64) (Transition, error)
	ListVisits(ctx context.Context, actorID string, from, to time.Time) ([]Visit, error)
	ActiveVisit(ctx context.Context, actorID string) (*Visit, error)
}

// InMemory implements Store with in-process concurrency safety.
// NOTE: dev and test use; production runs the Postgres store, which enforces
// the one-active-session invariant at the storage layer as well.
type InMemory struct {
	mu      sync.Mutex
	records []Record
	visits  map[string]*Visit
	open    map[string]string // actorID -> open visit id
	order   []string          // visit ids in creation order
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		visits: make(map[string]*Visit),
		open:   make(map[string]string),
	}
}

func (s *InMemory) Transition(ctx context.Context, actorID string, siteID int64, action Action, at time.Time, lat, lng float64) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	openID, hasOpen := s.open[actorID]

	// Infer the action from the open-session slot when not supplied.
	if action == "" {
		if hasOpen {
			action = ActionCheckout
		} else {
			action = ActionCheckin
		}
	}

	switch action {
	case ActionCheckin:
		if hasOpen {
			return Transition{}, ErrAlreadyCheckedIn
		}
		visit := &Visit{
			ID:         ids.New(),
			ActorID:    actorID,
			SiteID:     siteID,
			CheckinAt:  at,
			CheckinLat: lat,
			CheckinLng: lng,
		}
		s.visits[visit.ID] = visit
		s.order = append(s.order, visit.ID)
		s.open[actorID] = visit.ID
		s.records = append(s.records, Record{
			ID:            ids.New(),
			ActorID:       actorID,
			SiteID:        siteID,
			Action:        ActionCheckin,
			At:            at,
			Latitude:      lat,
			Longitude:     lng,
			ActiveSession: true,
		})
		return Transition{Action: ActionCheckin, SiteID: siteID, VisitID: visit.ID, At: at}, nil

	case ActionCheckout:
		if !hasOpen {
			return Transition{}, ErrNoActiveSession
		}
		visit := s.visits[openID]
		if visit.SiteID != siteID {
			return Transition{}, ErrWrongSiteCheckout
		}
		dur := durationMinutes(visit.CheckinAt, at)
		visit.CheckoutAt = &at
		visit.CheckoutLat = &lat
		visit.CheckoutLng = &lng
		visit.DurationMinutes = &dur
		delete(s.open, actorID)
		// Flip the prior check-in record's active flag off.
		for i := len(s.records) - 1; i >= 0; i-- {
			if s.records[i].ActorID == actorID && s.records[i].ActiveSession {
				s.records[i].ActiveSession = false
				break
			}
		}
		s.records = append(s.records, Record{
			ID:        ids.New(),
			ActorID:   actorID,
			SiteID:    siteID,
			Action:    ActionCheckout,
			At:        at,
			Latitude:  lat,
			Longitude: lng,
		})
		return Transition{Action: ActionCheckout, SiteID: siteID, VisitID: visit.ID, At: at, DurationMinutes: &dur}, nil

	default:
		return Transition{}, ErrInvalidAction
	}
}

func (s *InMemory) ListVisits(ctx context.Context, actorID string, from, to time.Time) ([]Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []Visit
	for _, id := range s.order {
		v := s.visits[id]
		if v.ActorID != actorID {
			continue
		}
		if !from.IsZero() && v.CheckinAt.Before(from) {
			continue
		}
		if !to.IsZero() && !v.CheckinAt.Before(to) {
			continue
		}
		res = append(res, *v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CheckinAt.Before(res[j].CheckinAt) })
	return res, nil
}

func (s *InMemory) ActiveVisit(ctx context.Context, actorID string) (*Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.open[actorID]
	if !ok {
		return nil, nil
	}
	v := *s.visits[id]
	return &v, nil
}

// ActiveRecordCount reports how many transition rows carry the active flag
// for the actor. Test hook for the one-open-session invariant.
func (s *InMemory) ActiveRecordCount(actorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.ActorID == actorID && r.ActiveSession {
			n++
		}
	}
	return n
}
