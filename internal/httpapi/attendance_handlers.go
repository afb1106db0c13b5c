package httpapi

import (
	"errors"
	"net/http"

	"fieldtrace.org/internal/attendance"
	"fieldtrace.org/internal/auth"
	"fieldtrace.org/internal/obs"
)

type attendanceRequest struct {
	ID         string  `json:"id,omitempty"`
	PersonID   string  `json:"person_id"`
	Date       string  `json:"date"`
	Status     string  `json:"status"`
	SiteID     *int64  `json:"site_id,omitempty"`
	ShiftStart *int    `json:"shift_start,omitempty"`
	ShiftEnd   *int    `json:"shift_end,omitempty"`
	ShiftID    *string `json:"shift_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

func (req attendanceRequest) toEntry(createdBy string) attendance.Entry {
	return attendance.Entry{
		ID:         req.ID,
		PersonID:   req.PersonID,
		Date:       req.Date,
		Status:     attendance.Status(req.Status),
		SiteID:     req.SiteID,
		ShiftStart: req.ShiftStart,
		ShiftEnd:   req.ShiftEnd,
		ShiftID:    req.ShiftID,
		CreatedBy:  createdBy,
		Reason:     req.Reason,
	}
}

func (a *API) handleAttendance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.saveAttendance(w, r)
	case http.MethodGet:
		a.listAttendance(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) saveAttendance(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := a.attendance.Save(r.Context(), req.toEntry(p.ID), p.ID)
	if err != nil {
		a.writeAttendanceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) listAttendance(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	q := r.URL.Query()
	personID := q.Get("person_id")
	date := q.Get("date")
	if personID == "" || date == "" {
		writeError(w, r, http.StatusBadRequest, "person_id and date are required")
		return
	}
	if err := attendance.ValidateDate(date); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := a.attendance.ListEntries(r.Context(), personID, date)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleConflictCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	conflict, err := a.attendance.CheckConflict(r.Context(), req.toEntry(p.ID), req.ID)
	if err != nil {
		a.writeAttendanceError(w, r, err)
		return
	}
	if conflict == nil {
		obs.CountConflictCheck("clear")
		writeJSON(w, http.StatusOK, map[string]any{"conflict": false})
		return
	}
	obs.CountConflictCheck("conflict")
	writeJSON(w, http.StatusOK, map[string]any{
		"conflict":    true,
		"site_id":     conflict.SiteID,
		"site_name":   conflict.SiteName,
		"shift_start": conflict.ShiftStart,
		"shift_end":   conflict.ShiftEnd,
		"message":     conflict.Error(),
	})
}

func (a *API) writeAttendanceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *attendance.ConflictError
	switch {
	case errors.As(err, &conflict):
		payload := map[string]any{
			"error":       conflict.Error(),
			"site_id":     conflict.SiteID,
			"site_name":   conflict.SiteName,
			"shift_start": conflict.ShiftStart,
			"shift_end":   conflict.ShiftEnd,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, attendance.ErrMissingFields),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, attendance.ErrInvalidWindow):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, attendance.ErrEntryNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, attendance.ErrTimeConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
