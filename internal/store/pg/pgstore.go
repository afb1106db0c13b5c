// Package pg is the Postgres session store. The one-active-session-per-actor
// invariant is enforced here twice: the serializable transition transaction
// re-reads the open-session row under FOR UPDATE before writing, and a
// partial unique index on session_records(actor_id) WHERE active_session acts
// as the storage-layer backstop.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fieldtrace.org/internal/ids"
	"fieldtrace.org/internal/session"
)

type Store struct {
	db *sql.DB
}

var _ session.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool (tests, shared pools).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Transition(ctx context.Context, actorID string, siteID int64, action session.Action, at time.Time, lat, lng float64) (session.Transition, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return session.Transition{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Re-read the open-session slot under lock. Two concurrent check-ins for
	// the same actor serialize here; the loser sees the winner's row.
	var (
		openRecordID string
		openVisitID  string
		openSiteID   int64
		openAt       time.Time
		hasOpen      = true
	)
	err = tx.QueryRowContext(ctx, `
		select r.id, v.id, r.site_id, v.checkin_at
		from session_records r
		join visit_records v on v.actor_id = r.actor_id and v.checkout_at is null
		where r.actor_id=$1 and r.active_session
		for update of r, v
	`, actorID).Scan(&openRecordID, &openVisitID, &openSiteID, &openAt)
	if errors.Is(err, sql.ErrNoRows) {
		hasOpen = false
	} else if err != nil {
		return session.Transition{}, err
	}

	if action == "" {
		if hasOpen {
			action = session.ActionCheckout
		} else {
			action = session.ActionCheckin
		}
	}

	switch action {
	case session.ActionCheckin:
		if hasOpen {
			return session.Transition{}, session.ErrAlreadyCheckedIn
		}
		recID := ids.New()
		visitID := ids.New()
		if _, err := tx.ExecContext(ctx, `
			insert into session_records(id, actor_id, site_id, action, at, latitude, longitude, active_session)
			values ($1,$2,$3,'checkin',$4,$5,$6,true)
		`, recID, actorID, siteID, at, lat, lng); err != nil {
			if isUniqueViolation(err) {
				return session.Transition{}, session.ErrAlreadyCheckedIn
			}
			return session.Transition{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into visit_records(id, actor_id, site_id, checkin_at, checkin_lat, checkin_lng)
			values ($1,$2,$3,$4,$5,$6)
		`, visitID, actorID, siteID, at, lat, lng); err != nil {
			return session.Transition{}, err
		}
		if err := tx.Commit(); err != nil {
			return session.Transition{}, err
		}
		return session.Transition{Action: session.ActionCheckin, SiteID: siteID, VisitID: visitID, At: at}, nil

	case session.ActionCheckout:
		if !hasOpen {
			return session.Transition{}, session.ErrNoActiveSession
		}
		if openSiteID != siteID {
			return session.Transition{}, session.ErrWrongSiteCheckout
		}
		if _, err := tx.ExecContext(ctx, `
			update session_records set active_session=false where id=$1
		`, openRecordID); err != nil {
			return session.Transition{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into session_records(id, actor_id, site_id, action, at, latitude, longitude, active_session)
			values ($1,$2,$3,'checkout',$4,$5,$6,false)
		`, ids.New(), actorID, siteID, at, lat, lng); err != nil {
			return session.Transition{}, err
		}
		var dur int64
		if err := tx.QueryRowContext(ctx, `
			update visit_records
			set checkout_at=$2, checkout_lat=$3, checkout_lng=$4,
			    duration_minutes = round(extract(epoch from ($2 - checkin_at)) / 60)
			where id=$1
			returning duration_minutes
		`, openVisitID, at, lat, lng).Scan(&dur); err != nil {
			return session.Transition{}, err
		}
		if err := tx.Commit(); err != nil {
			return session.Transition{}, err
		}
		return session.Transition{Action: session.ActionCheckout, SiteID: siteID, VisitID: openVisitID, At: at, DurationMinutes: &dur}, nil

	default:
		return session.Transition{}, session.ErrInvalidAction
	}
}

func (s *Store) ListVisits(ctx context.Context, actorID string, from, to time.Time) ([]session.Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, actor_id, site_id, checkin_at, checkin_lat, checkin_lng,
		       checkout_at, checkout_lat, checkout_lng, duration_minutes
		from visit_records
		where actor_id=$1
		  and ($2::timestamptz is null or checkin_at >= $2)
		  and ($3::timestamptz is null or checkin_at < $3)
		order by checkin_at asc
	`, actorID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []session.Visit
	for rows.Next() {
		var (
			v   session.Visit
			out sql.NullTime
			lat sql.NullFloat64
			lng sql.NullFloat64
			dur sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.ActorID, &v.SiteID, &v.CheckinAt, &v.CheckinLat, &v.CheckinLng, &out, &lat, &lng, &dur); err != nil {
			return nil, err
		}
		if out.Valid {
			t := out.Time
			v.CheckoutAt = &t
		}
		if lat.Valid {
			f := lat.Float64
			v.CheckoutLat = &f
		}
		if lng.Valid {
			f := lng.Float64
			v.CheckoutLng = &f
		}
		if dur.Valid {
			d := dur.Int64
			v.DurationMinutes = &d
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *Store) ActiveVisit(ctx context.Context, actorID string) (*session.Visit, error) {
	var v session.Visit
	err := s.db.QueryRowContext(ctx, `
		select id, actor_id, site_id, checkin_at, checkin_lat, checkin_lng
		from visit_records
		where actor_id=$1 and checkout_at is null
	`, actorID).Scan(&v.ID, &v.ActorID, &v.SiteID, &v.CheckinAt, &v.CheckinLat, &v.CheckinLng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// --- helpers ---

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	// pgx wraps server errors with the SQLSTATE in the message; 23505 is
	// unique_violation.
	return err != nil && strings.Contains(err.Error(), "23505")
}
