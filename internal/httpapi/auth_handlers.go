package httpapi

import (
	"net/http"
	"strings"
	"time"

	"fieldtrace.org/internal/auth"
)

type tokenRequest struct {
	ActorID    string   `json:"actor_id"`
	Roles      []string `json:"roles"`
	TTLSeconds int64    `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// issueToken mints a bearer token for a known actor. Deployment fronts this
// endpoint with the identity provider; here it maps roles directly.
func (a *API) issueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		writeError(w, r, http.StatusBadRequest, "actor_id is required")
		return
	}
	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{auth.RoleSupervisor}
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}

	token, err := auth.GenerateToken(req.ActorID, roles, ttl)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
}
