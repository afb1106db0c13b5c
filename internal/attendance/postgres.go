package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldtrace.org/internal/ids"
)

// Postgres implements Store over database/sql.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const entryColumns = `id, person_id, date, status, site_id, shift_start, shift_end, shift_id, created_by, reason, created_at, updated_at`

func (p *Postgres) ListEntries(ctx context.Context, personID, date string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		select `+entryColumns+`
		from attendance_entries
		where person_id=$1 and date=$2
		order by created_at asc
	`, personID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (p *Postgres) GetEntry(ctx context.Context, id string) (Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		select `+entryColumns+`
		from attendance_entries where id=$1
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

func (p *Postgres) SaveEntry(ctx context.Context, entry Entry) (Entry, error) {
	return p.SaveEntryChecked(ctx, entry, nil)
}

// SaveEntryChecked serializes the conflict verdict with the write. The
// serializable transaction re-reads the person's rows for the date under
// FOR UPDATE before check runs; serializable isolation covers concurrent
// inserts the row locks cannot see.
func (p *Postgres) SaveEntryChecked(ctx context.Context, entry Entry, check CheckFunc) (Entry, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if check != nil {
		rows, err := tx.QueryContext(ctx, `
			select `+entryColumns+`
			from attendance_entries
			where person_id=$1 and date=$2
			order by created_at asc
			for update
		`, entry.PersonID, entry.Date)
		if err != nil {
			return Entry{}, err
		}
		var existing []Entry
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				rows.Close()
				return Entry{}, err
			}
			existing = append(existing, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return Entry{}, err
		}
		rows.Close()
		if err := check(ctx, existing); err != nil {
			return Entry{}, err
		}
	}

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = ids.New()
		entry.CreatedAt = now
		entry.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, `
			insert into attendance_entries(`+entryColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, entry.ID, entry.PersonID, entry.Date, string(entry.Status), entry.SiteID,
			entry.ShiftStart, entry.ShiftEnd, entry.ShiftID, entry.CreatedBy, entry.Reason,
			entry.CreatedAt, entry.UpdatedAt); err != nil {
			return Entry{}, err
		}
		if err := tx.Commit(); err != nil {
			return Entry{}, err
		}
		return entry, nil
	}

	entry.UpdatedAt = now
	res, err := tx.ExecContext(ctx, `
		update attendance_entries
		set status=$2, site_id=$3, shift_start=$4, shift_end=$5, shift_id=$6, reason=$7, updated_at=$8
		where id=$1
	`, entry.ID, string(entry.Status), entry.SiteID, entry.ShiftStart, entry.ShiftEnd,
		entry.ShiftID, entry.Reason, entry.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Entry{}, ErrEntryNotFound
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var (
		e          Entry
		status     string
		siteID     sql.NullInt64
		shiftStart sql.NullInt64
		shiftEnd   sql.NullInt64
		shiftID    sql.NullString
		reason     sql.NullString
	)
	if err := r.Scan(&e.ID, &e.PersonID, &e.Date, &status, &siteID, &shiftStart, &shiftEnd,
		&shiftID, &e.CreatedBy, &reason, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)
	if siteID.Valid {
		v := siteID.Int64
		e.SiteID = &v
	}
	if shiftStart.Valid {
		v := int(shiftStart.Int64)
		e.ShiftStart = &v
	}
	if shiftEnd.Valid {
		v := int(shiftEnd.Int64)
		e.ShiftEnd = &v
	}
	if shiftID.Valid {
		v := shiftID.String
		e.ShiftID = &v
	}
	if reason.Valid {
		e.Reason = reason.String
	}
	return e, nil
}
