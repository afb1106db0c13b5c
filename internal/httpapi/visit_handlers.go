package httpapi

import (
	"errors"
	"net/http"
	"time"

	"fieldtrace.org/internal/audit"
	"fieldtrace.org/internal/auth"
	"fieldtrace.org/internal/geo"
	"fieldtrace.org/internal/obs"
	"fieldtrace.org/internal/qr"
	"fieldtrace.org/internal/session"
	"fieldtrace.org/internal/stream"
)

type visitRequest struct {
	Payload   string   `json:"payload"`
	SiteID    int64    `json:"site_id,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Action    string   `json:"action,omitempty"`
}

type visitResponse struct {
	Status          string    `json:"status"`
	SiteID          int64     `json:"site_id"`
	SiteName        string    `json:"site_name"`
	VisitID         string    `json:"visit_id"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes *int64    `json:"duration_minutes,omitempty"`
}

func (a *API) handleVisits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.recordVisit(w, r)
	case http.MethodGet:
		a.listVisits(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) recordVisit(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.ledger.RecordVisit(r.Context(), session.VisitRequest{
		ActorID:  p.ID,
		Payload:  req.Payload,
		SiteHint: req.SiteID,
		Lat:      req.Latitude,
		Lng:      req.Longitude,
		Action:   session.Action(req.Action),
	})
	if err != nil {
		action := req.Action
		if action == "" {
			action = "infer"
		}
		obs.CountVisitTransition(action, "rejected")
		a.writeVisitError(w, r, err)
		return
	}

	obs.CountVisitTransition(string(res.Transition.Action), "ok")
	_ = audit.LogEvent(r.Context(), "visit."+string(res.Transition.Action), map[string]any{
		"site_id":  res.Site.ID,
		"visit_id": res.Transition.VisitID,
	})
	if a.stream != nil {
		a.stream.Publish(stream.VisitEvent{
			ActorID:   p.ID,
			SiteID:    res.Site.ID,
			SiteName:  res.Site.Name,
			Action:    string(res.Transition.Action),
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Timestamp: res.Transition.At,
		})
	}

	writeJSON(w, http.StatusOK, visitResponse{
		Status:          string(res.Transition.Action),
		SiteID:          res.Site.ID,
		SiteName:        res.Site.Name,
		VisitID:         res.Transition.VisitID,
		Timestamp:       res.Transition.At,
		DurationMinutes: res.Transition.DurationMinutes,
	})
}

func (a *API) writeVisitError(w http.ResponseWriter, r *http.Request, err error) {
	var oor *session.OutOfRangeError
	switch {
	case errors.As(err, &oor):
		payload := map[string]any{
			"error":           err.Error(),
			"distance_meters": oor.DistanceMeters,
			"limit_meters":    oor.LimitMeters,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, session.ErrInvalidAction),
		errors.Is(err, session.ErrMissingLocation),
		errors.Is(err, geo.ErrInvalidCoords),
		errors.Is(err, qr.ErrEmptyPayload),
		errors.Is(err, qr.ErrInvalidQR):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotAssigned):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, qr.ErrUnknownQR):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrAlreadyCheckedIn),
		errors.Is(err, session.ErrWrongSiteCheckout),
		errors.Is(err, session.ErrNoActiveSession):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) listVisits(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	actorID := p.ID
	if other := q.Get("actor_id"); other != "" && other != p.ID {
		if !p.HasRole(auth.RoleAdmin) {
			writeError(w, r, http.StatusForbidden, "insufficient role")
			return
		}
		actorID = other
	}

	visits, err := a.ledger.ListVisits(r.Context(), actorID, from, to)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"visits": a.localizeVisits(visits),
	})
}

// parseRange reads RFC 3339 bounds; missing bounds default to the last day.
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC 3339")
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC 3339")
		}
		to = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must precede to")
	}
	return from, to, nil
}

// localizeVisits converts stored UTC instants to the display timezone.
func (a *API) localizeVisits(visits []session.Visit) []session.Visit {
	out := make([]session.Visit, len(visits))
	for i, v := range visits {
		v.CheckinAt = v.CheckinAt.In(a.displayTZ)
		if v.CheckoutAt != nil {
			t := v.CheckoutAt.In(a.displayTZ)
			v.CheckoutAt = &t
		}
		out[i] = v
	}
	return out
}
