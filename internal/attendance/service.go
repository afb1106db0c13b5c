package attendance

import (
	"context"
	"fmt"

	"fieldtrace.org/internal/audit"
	"fieldtrace.org/internal/shift"
)

// Service validates and persists attendance entries. Every presence-requiring
// write passes the conflict guard before it reaches the store; status and
// shift changes are mirrored to the audit trail.
type Service struct {
	store Store
	guard *Guard
	trail *audit.Trail
}

func NewService(store Store, guard *Guard, trail *audit.Trail) *Service {
	return &Service{store: store, guard: guard, trail: trail}
}

// Save creates or updates an entry. changedBy is the acting user recorded in
// the audit trail.
func (s *Service) Save(ctx context.Context, entry Entry, changedBy string) (Entry, error) {
	if entry.PersonID == "" {
		return Entry{}, fmt.Errorf("%w: person_id", ErrMissingFields)
	}
	if err := ValidateDate(entry.Date); err != nil {
		return Entry{}, err
	}
	if !entry.Status.Valid() {
		return Entry{}, ErrInvalidStatus
	}

	var check CheckFunc
	if entry.Status.RequiresPresence() {
		if entry.SiteID == nil {
			return Entry{}, fmt.Errorf("%w: site_id is required for %s", ErrMissingFields, entry.Status)
		}
		if entry.ShiftStart == nil || entry.ShiftEnd == nil {
			return Entry{}, fmt.Errorf("%w: shift window is required for %s", ErrMissingFields, entry.Status)
		}
		if err := validateWindow(*entry.ShiftStart, *entry.ShiftEnd); err != nil {
			return Entry{}, err
		}
		// Verdict runs on rows the store reads inside its own transaction
		// or lock, so two racing presence writes cannot both pass.
		check = func(ctx context.Context, existing []Entry) error {
			return s.guard.Verdict(ctx, entry, entry.ID, existing)
		}
	}

	var old *Entry
	if entry.ID != "" {
		prev, err := s.store.GetEntry(ctx, entry.ID)
		if err != nil {
			return Entry{}, err
		}
		old = &prev
	}

	saved, err := s.store.SaveEntryChecked(ctx, entry, check)
	if err != nil {
		return Entry{}, err
	}

	s.recordAudit(ctx, old, saved, changedBy)
	return saved, nil
}

// CheckConflict is the dry-run form of the guard used by the conflict-check
// endpoint. It returns the conflict detail without writing anything.
func (s *Service) CheckConflict(ctx context.Context, entry Entry, excludeEntryID string) (*ConflictError, error) {
	err := s.guard.Check(ctx, entry, excludeEntryID)
	if err == nil {
		return nil, nil
	}
	if conflict, ok := err.(*ConflictError); ok {
		return conflict, nil
	}
	return nil, err
}

// ListEntries exposes the store for reporting callers.
func (s *Service) ListEntries(ctx context.Context, personID, date string) ([]Entry, error) {
	return s.store.ListEntries(ctx, personID, date)
}

func (s *Service) recordAudit(ctx context.Context, old *Entry, saved Entry, changedBy string) {
	if old == nil {
		s.trail.Record(ctx, audit.Entry{
			AttendanceEntryID: saved.ID,
			ChangedBy:         changedBy,
			NewValue:          describe(saved),
			ChangeType:        "create",
		})
		return
	}
	if old.Status != saved.Status {
		s.trail.Record(ctx, audit.Entry{
			AttendanceEntryID: saved.ID,
			ChangedBy:         changedBy,
			OldValue:          string(old.Status),
			NewValue:          string(saved.Status),
			ChangeType:        "status",
		})
	}
	if windowChanged(*old, saved) {
		s.trail.Record(ctx, audit.Entry{
			AttendanceEntryID: saved.ID,
			ChangedBy:         changedBy,
			OldValue:          describeWindow(*old),
			NewValue:          describeWindow(saved),
			ChangeType:        "shift",
		})
	}
}

func validateWindow(start, end int) error {
	if start < 0 || start >= 1440 || end < 0 || end >= 1440 {
		return ErrInvalidWindow
	}
	return nil
}

func windowChanged(a, b Entry) bool {
	wa, oka := a.Window()
	wb, okb := b.Window()
	if oka != okb {
		return true
	}
	return oka && wa != wb
}

func describe(e Entry) string {
	if w, ok := e.Window(); ok {
		return fmt.Sprintf("%s %s-%s", e.Status, shift.Clock(w.Start), shift.Clock(w.End))
	}
	return string(e.Status)
}

func describeWindow(e Entry) string {
	if w, ok := e.Window(); ok {
		return fmt.Sprintf("%s-%s", shift.Clock(w.Start), shift.Clock(w.End))
	}
	return ""
}
