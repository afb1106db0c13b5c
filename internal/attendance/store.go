package attendance

import (
	"context"
	"sync"
	"time"

	"fieldtrace.org/internal/ids"
)

// CheckFunc validates a pending write against the person's other entries for
// the date. The store calls it with rows read under the same transaction or
// lock that performs the write, so the verdict cannot be raced stale.
type CheckFunc func(ctx context.Context, existing []Entry) error

// Store persists attendance entries.
type Store interface {
	ListEntries(ctx context.Context, personID, date string) ([]Entry, error)
	GetEntry(ctx context.Context, id string) (Entry, error)
	// SaveEntry persists without revalidation (seeding, imports).
	SaveEntry(ctx context.Context, entry Entry) (Entry, error)
	// SaveEntryChecked runs check inside the write's critical section and
	// aborts the save when it fails.
	SaveEntryChecked(ctx context.Context, entry Entry, check CheckFunc) (Entry, error)
}

// Memory implements Store in process for dev and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) ListEntries(ctx context.Context, personID, date string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Entry
	for _, id := range m.order {
		e := m.entries[id]
		if e.PersonID == personID && e.Date == date {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *Memory) GetEntry(ctx context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) SaveEntry(ctx context.Context, entry Entry) (Entry, error) {
	return m.SaveEntryChecked(ctx, entry, nil)
}

func (m *Memory) SaveEntryChecked(ctx context.Context, entry Entry, check CheckFunc) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if check != nil {
		var existing []Entry
		for _, id := range m.order {
			e := m.entries[id]
			if e.PersonID == entry.PersonID && e.Date == entry.Date {
				existing = append(existing, e)
			}
		}
		if err := check(ctx, existing); err != nil {
			return Entry{}, err
		}
	}

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = ids.New()
		entry.CreatedAt = now
		m.order = append(m.order, entry.ID)
	} else if _, ok := m.entries[entry.ID]; !ok {
		return Entry{}, ErrEntryNotFound
	} else {
		entry.CreatedAt = m.entries[entry.ID].CreatedAt
	}
	entry.UpdatedAt = now
	m.entries[entry.ID] = entry
	return entry, nil
}
