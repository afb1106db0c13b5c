package attendance

import (
	"context"

	"fieldtrace.org/internal/roster"
	"fieldtrace.org/internal/shift"
)

// Guard is the pure conflict decision over data supplied by the store.
// It performs no writes.
type Guard struct {
	store            Store
	sites            roster.SiteCatalog
	toleranceSeconds int
}

func NewGuard(store Store, sites roster.SiteCatalog, toleranceSeconds int) *Guard {
	if toleranceSeconds < 0 {
		toleranceSeconds = shift.DefaultToleranceSeconds
	}
	return &Guard{store: store, sites: sites, toleranceSeconds: toleranceSeconds}
}

// Check inspects the candidate entry against the person's other entries for
// the same date. It returns a ConflictError when a presence-requiring entry
// at a different site overlaps the candidate window. excludeEntryID skips the
// entry being edited. Entries whose status carries no meaningful window are
// never checked.
//
// Check reads through the plain store and is for dry runs only; the write
// path re-runs Verdict over rows read inside the saving transaction.
func (g *Guard) Check(ctx context.Context, candidate Entry, excludeEntryID string) error {
	if !candidate.Status.RequiresPresence() {
		return nil
	}
	if _, ok := candidate.Window(); !ok || candidate.SiteID == nil {
		return nil
	}
	existing, err := g.store.ListEntries(ctx, candidate.PersonID, candidate.Date)
	if err != nil {
		return err
	}
	return g.Verdict(ctx, candidate, excludeEntryID, existing)
}

// Verdict is the pure comparison over already-loaded rows. Callers that hold
// a transaction or lock pass the rows they read under it.
func (g *Guard) Verdict(ctx context.Context, candidate Entry, excludeEntryID string, existing []Entry) error {
	if !candidate.Status.RequiresPresence() {
		return nil
	}
	window, ok := candidate.Window()
	if !ok || candidate.SiteID == nil {
		return nil
	}

	for _, other := range existing {
		if excludeEntryID != "" && other.ID == excludeEntryID {
			continue
		}
		if !other.Status.RequiresPresence() {
			continue
		}
		otherWindow, ok := other.Window()
		if !ok || other.SiteID == nil {
			continue
		}
		if *other.SiteID == *candidate.SiteID {
			continue
		}
		if res := shift.Overlaps(window, otherWindow, g.toleranceSeconds); res.Overlap {
			name := siteName(ctx, g.sites, *other.SiteID)
			return &ConflictError{
				SiteID:     *other.SiteID,
				SiteName:   name,
				ShiftStart: otherWindow.Start,
				ShiftEnd:   otherWindow.End,
			}
		}
	}
	return nil
}

func siteName(ctx context.Context, sites roster.SiteCatalog, id int64) string {
	if sites == nil {
		return "another site"
	}
	site, err := sites.GetSite(ctx, id)
	if err != nil {
		return "another site"
	}
	return site.Name
}
