// Package audit records attendance status and shift changes. Entries are
// append-only; a failed store write is surfaced to the operational log but
// never fails the primary write.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fieldtrace.org/internal/auth"
	"fieldtrace.org/internal/ids"
	"fieldtrace.org/internal/obs"
)

// Entry captures one attendance change.
type Entry struct {
	ID                string    `json:"id"`
	AttendanceEntryID string    `json:"attendance_entry_id"`
	ChangedBy         string    `json:"changed_by"`
	OldValue          string    `json:"old_value"`
	NewValue          string    `json:"new_value"`
	ChangeType        string    `json:"change_type"` // status | shift | create
	At                time.Time `json:"at"`
}

// Store appends immutable audit rows.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Trail is the append-only writer used by attendance persistence.
type Trail struct {
	store Store
}

func NewTrail(store Store) *Trail { return &Trail{store: store} }

// Record fills in the id and timestamp, appends to the store and always
// emits a JSON audit log line. Best effort: a store failure is logged and
// swallowed.
func (t *Trail) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	_ = LogEvent(ctx, "attendance.change."+entry.ChangeType, map[string]any{
		"attendance_entry_id": entry.AttendanceEntryID,
		"changed_by":          entry.ChangedBy,
		"old_value":           entry.OldValue,
		"new_value":           entry.NewValue,
	})
	if t == nil || t.store == nil {
		return
	}
	if err := t.store.Append(ctx, entry); err != nil {
		_ = LogEvent(ctx, "audit.append_failed", map[string]any{
			"attendance_entry_id": entry.AttendanceEntryID,
			"error":               err.Error(),
		})
	}
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		entry["actor_id"] = principal.ID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
