package audit

import (
	"context"
	"database/sql"
	"sync"
)

// MemoryStore keeps audit entries in process for dev and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// PostgresStore appends audit rows to audit_entries. Pure insert, no
// read-modify-write.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (p *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := p.db.ExecContext(ctx, `
		insert into audit_entries(id, attendance_entry_id, changed_by, old_value, new_value, change_type, at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.AttendanceEntryID, entry.ChangedBy, entry.OldValue, entry.NewValue, entry.ChangeType, entry.At)
	return err
}
