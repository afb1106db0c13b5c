package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"fieldtrace.org/internal/session"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func expectOpenSlotQuery(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`select r\.id, v\.id, r\.site_id, v\.checkin_at`)
}

func TestCheckinInsertsRecordAndVisit(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectOpenSlotQuery(mock).WithArgs("sup-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`insert into session_records`).
		WithArgs(sqlmock.AnyArg(), "sup-1", int64(7), at, 12.97, 77.59).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into visit_records`).
		WithArgs(sqlmock.AnyArg(), "sup-1", int64(7), at, 12.97, 77.59).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tr, err := store.Transition(context.Background(), "sup-1", 7, "", at, 12.97, 77.59)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Action != session.ActionCheckin || tr.VisitID == "" {
		t.Fatalf("unexpected transition: %+v", tr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckinRejectedWhenSlotOccupied(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	expectOpenSlotQuery(mock).WithArgs("sup-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "id", "site_id", "checkin_at"}).
			AddRow("rec-1", "vis-1", int64(7), at.Add(-time.Hour)))
	mock.ExpectRollback()

	_, err := store.Transition(context.Background(), "sup-1", 7, session.ActionCheckin, at, 0, 0)
	if !errors.Is(err, session.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckinUniqueIndexBackstop(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	expectOpenSlotQuery(mock).WithArgs("sup-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`insert into session_records`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "session_records_one_active" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	_, err := store.Transition(context.Background(), "sup-1", 7, session.ActionCheckin, at, 0, 0)
	if !errors.Is(err, session.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn from backstop, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckoutClosesVisit(t *testing.T) {
	store, mock := newMockStore(t)
	in := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)

	mock.ExpectBegin()
	expectOpenSlotQuery(mock).WithArgs("sup-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "id", "site_id", "checkin_at"}).
			AddRow("rec-1", "vis-1", int64(7), in))
	mock.ExpectExec(`update session_records set active_session=false`).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into session_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`update visit_records`).
		WithArgs("vis-1", out, 12.97, 77.59).
		WillReturnRows(sqlmock.NewRows([]string{"duration_minutes"}).AddRow(int64(480)))
	mock.ExpectCommit()

	tr, err := store.Transition(context.Background(), "sup-1", 7, "", out, 12.97, 77.59)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Action != session.ActionCheckout || tr.DurationMinutes == nil || *tr.DurationMinutes != 480 {
		t.Fatalf("unexpected transition: %+v", tr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckoutWrongSite(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectOpenSlotQuery(mock).WithArgs("sup-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "id", "site_id", "checkin_at"}).
			AddRow("rec-1", "vis-1", int64(7), time.Now().UTC()))
	mock.ExpectRollback()

	_, err := store.Transition(context.Background(), "sup-1", 8, session.ActionCheckout, time.Now().UTC(), 0, 0)
	if !errors.Is(err, session.ErrWrongSiteCheckout) {
		t.Fatalf("expected ErrWrongSiteCheckout, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckoutWithoutOpenSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectOpenSlotQuery(mock).WithArgs("sup-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Transition(context.Background(), "sup-1", 7, session.ActionCheckout, time.Now().UTC(), 0, 0)
	if !errors.Is(err, session.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListVisitsScansNullableColumns(t *testing.T) {
	store, mock := newMockStore(t)
	in := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)

	cols := []string{"id", "actor_id", "site_id", "checkin_at", "checkin_lat", "checkin_lng",
		"checkout_at", "checkout_lat", "checkout_lng", "duration_minutes"}
	mock.ExpectQuery(`select id, actor_id, site_id, checkin_at`).
		WithArgs("sup-1", nil, nil).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("vis-1", "sup-1", int64(7), in, 12.97, 77.59, out, 12.97, 77.59, int64(480)).
			AddRow("vis-2", "sup-1", int64(7), out.Add(time.Hour), 12.97, 77.59, nil, nil, nil, nil))

	visits, err := store.ListVisits(context.Background(), "sup-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(visits) != 2 {
		t.Fatalf("expected 2 visits, got %d", len(visits))
	}
	if visits[0].DurationMinutes == nil || *visits[0].DurationMinutes != 480 {
		t.Fatalf("closed visit not mapped: %+v", visits[0])
	}
	if visits[1].CheckoutAt != nil || visits[1].DurationMinutes != nil {
		t.Fatalf("open visit should have nil checkout fields: %+v", visits[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
