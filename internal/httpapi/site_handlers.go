package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"fieldtrace.org/internal/auth"
	"fieldtrace.org/internal/geo"
	"fieldtrace.org/internal/roster"
)

type siteRequest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	QRToken   string  `json:"qr_token,omitempty"`
}

func (a *API) handleSitesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}

	var req siteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if err := geo.ValidateCoords(req.Latitude, req.Longitude); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token := strings.TrimSpace(req.QRToken)
	if token == "" {
		token = uuid.NewString()
	}
	site, err := a.sites.CreateSite(r.Context(), roster.Site{
		Name:      strings.TrimSpace(req.Name),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		QRToken:   token,
	})
	if err != nil {
		a.writeSiteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

// handleSiteResource routes /v1/sites/{id} and /v1/sites/{id}/assignments.
func (a *API) handleSiteResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sites/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	siteID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "site id must be numeric")
		return
	}

	switch {
	case len(parts) == 1:
		a.getSite(w, r, siteID)
	case len(parts) == 2 && parts[1] == "assignments":
		a.handleAssignments(w, r, siteID)
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) getSite(w http.ResponseWriter, r *http.Request, siteID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	site, err := a.sites.GetSite(r.Context(), siteID)
	if err != nil {
		a.writeSiteError(w, r, err)
		return
	}
	// QR tokens stay server-side.
	site.QRToken = ""
	writeJSON(w, http.StatusOK, site)
}

type assignmentRequest struct {
	ActorID string `json:"actor_id"`
	Remove  bool   `json:"remove,omitempty"`
}

func (a *API) handleAssignments(w http.ResponseWriter, r *http.Request, siteID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}

	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		writeError(w, r, http.StatusBadRequest, "actor_id is required")
		return
	}
	if _, err := a.sites.GetSite(r.Context(), siteID); err != nil {
		a.writeSiteError(w, r, err)
		return
	}

	if req.Remove {
		err := a.assignments.Unassign(r.Context(), req.ActorID, siteID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assigned": false})
		return
	}

	if err := a.assignments.Assign(r.Context(), req.ActorID, siteID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assigned": true})
}

func (a *API) writeSiteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, roster.ErrSiteNotFound), errors.Is(err, roster.ErrTokenNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, roster.ErrSiteExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, roster.ErrInvalidSite):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
