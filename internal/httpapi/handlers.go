// Package httpapi is the HTTP surface over the presence core.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldtrace.org/internal/attendance"
	"fieldtrace.org/internal/obs"
	"fieldtrace.org/internal/roster"
	"fieldtrace.org/internal/session"
	"fieldtrace.org/internal/stream"
)

// ReadyProbe checks backing-store readiness (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API wires handlers, middleware and collaborators.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	ledger      *session.Ledger
	attendance  *attendance.Service
	sites       roster.SiteCatalog
	assignments roster.AssignmentStore
	stream      *stream.Stream

	displayTZ  *time.Location
	rateBurst  int
	ratePerSec int
}

// Config groups the collaborators the API serves.
type Config struct {
	Ready       ReadyProbe
	Version     string
	Ledger      *session.Ledger
	Attendance  *attendance.Service
	Sites       roster.SiteCatalog
	Assignments roster.AssignmentStore
	Stream      *stream.Stream
	DisplayTZ   *time.Location
}

func New(cfg Config) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  cfg.Ready,
		version:     cfg.Version,
		ledger:      cfg.Ledger,
		attendance:  cfg.Attendance,
		sites:       cfg.Sites,
		assignments: cfg.Assignments,
		stream:      cfg.Stream,
		displayTZ:   cfg.DisplayTZ,
		rateBurst:   20,
		ratePerSec:  10,
	}
	if a.displayTZ == nil {
		a.displayTZ = time.UTC
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.issueToken)

	// presence
	a.mux.HandleFunc("/v1/visits", a.handleVisits)
	a.mux.HandleFunc("/v1/visits/stream", a.Stream)

	// attendance
	a.mux.HandleFunc("/v1/attendance", a.handleAttendance)
	a.mux.HandleFunc("/v1/attendance/conflict-check", a.handleConflictCheck)

	// roster
	a.mux.HandleFunc("/v1/sites", a.handleSitesCollection)
	a.mux.HandleFunc("/v1/sites/", a.handleSiteResource)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fieldtrace-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "fieldtrace-api",
		"time":       time.Now().UTC().Format(time.RFC3339),
		"version":    a.version,
		"display_tz": a.displayTZ.String(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
