package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ground-booking/internal/persistence"
)

var bookingColumnNames = []string{
	"id", "ground_id", "slot_number", "booking_date", "start_minute", "end_minute", "customer_id",
	"status", "booking_type", "notes", "amount", "currency", "cancel_reason", "rescheduled_from", "series_id",
	"created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func sampleBooking() persistence.Booking {
	created := time.Date(2024, time.January, 8, 12, 0, 0, 0, time.UTC)
	return persistence.Booking{
		ID:          "B1",
		GroundID:    "G1",
		SlotNumber:  1,
		Date:        time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		StartMinute: 10 * 60,
		EndMinute:   12 * 60,
		CustomerID:  "C1",
		Status:      "pending",
		BookingType: "practice",
		Amount:      12000,
		Currency:    "INR",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestStore_CreateBookings(t *testing.T) {
	t.Parallel()

	t.Run("inserts after lock and overlap check", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		booking := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1, hashtext($2))`)).
			WithArgs(slotWriteLockSpace, "G1|1|2024-01-10").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM bookings`)).
			WithArgs("G1", 1, "2024-01-10", persistence.StatusCancelled, 720, 600, "").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
			WithArgs("B1", "G1", 1, "2024-01-10", 600, 720, "C1", "pending", "practice", "", int64(12000), "INR",
				"", "", "", booking.CreatedAt, booking.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.CreateBookings(context.Background(), []persistence.Booking{booking}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on overlap", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1, hashtext($2))`)).
			WithArgs(slotWriteLockSpace, "G1|1|2024-01-10").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM bookings`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("B0"))
		mock.ExpectRollback()

		err := store.CreateBookings(context.Background(), []persistence.Booking{sampleBooking()})
		require.ErrorIs(t, err, persistence.ErrOverlap)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps foreign key violations", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM bookings`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
			WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
		mock.ExpectRollback()

		err := store.CreateBookings(context.Background(), []persistence.Booking{sampleBooking()})
		require.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_UpdateBookingStatus(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC)
	update := persistence.StatusUpdate{BookingID: "B1", FromStatus: "pending", ToStatus: "confirmed", At: at}

	t.Run("returns the updated row", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		booking := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE bookings`)).
			WithArgs("confirmed", "", at, "B1", "pending").
			WillReturnRows(sqlmock.NewRows(bookingColumnNames).AddRow(
				booking.ID, booking.GroundID, booking.SlotNumber, booking.Date, booking.StartMinute, booking.EndMinute,
				booking.CustomerID, "confirmed", booking.BookingType, "", booking.Amount, booking.Currency, "", "", "",
				booking.CreatedAt, at,
			))
		mock.ExpectCommit()

		stored, err := store.UpdateBookingStatus(context.Background(), update)
		require.NoError(t, err)
		assert.Equal(t, "confirmed", stored.Status)
		assert.Equal(t, booking.Date, stored.Date)
		assert.Equal(t, at, stored.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports stale writes", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		booking := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE bookings`)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = $1`)).
			WithArgs("B1").
			WillReturnRows(sqlmock.NewRows(bookingColumnNames).AddRow(
				booking.ID, booking.GroundID, booking.SlotNumber, booking.Date, booking.StartMinute, booking.EndMinute,
				booking.CustomerID, "cancelled", booking.BookingType, "", booking.Amount, booking.Currency, "requested", "", "",
				booking.CreatedAt, booking.UpdatedAt,
			))
		mock.ExpectRollback()

		_, err := store.UpdateBookingStatus(context.Background(), update)
		require.ErrorIs(t, err, persistence.ErrStaleWrite)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports missing bookings", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE bookings`)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectRollback()

		_, err := store.UpdateBookingStatus(context.Background(), update)
		require.ErrorIs(t, err, persistence.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBuildListQuery(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	query, args := buildListQuery(persistence.BookingFilter{
		GroundID:   "G1",
		Date:       &date,
		Statuses:   []string{"pending", "confirmed"},
		CustomerID: "C1",
	})

	assert.Contains(t, query, "WHERE ground_id = $1 AND booking_date = $2 AND customer_id = $3 AND status = ANY($4)")
	assert.Contains(t, query, "ORDER BY booking_date, start_minute, id")
	require.Len(t, args, 4)
	assert.Equal(t, "2024-01-10", args[1])

	query, args = buildListQuery(persistence.BookingFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"23505": persistence.ErrDuplicate,
		"23503": persistence.ErrForeignKeyViolation,
		"23514": persistence.ErrConstraintViolation,
	}
	for code, want := range cases {
		assert.ErrorIs(t, mapError(&pq.Error{Code: pq.ErrorCode(code)}), want, code)
	}

	other := errors.New("boom")
	assert.Same(t, other, mapError(other))
	assert.NoError(t, mapError(nil))
}

func TestAdvisoryLocker(t *testing.T) {
	t.Parallel()

	lockSQL := regexp.QuoteMeta(`SELECT pg_advisory_lock($1, hashtext($2))`)
	unlockSQL := regexp.QuoteMeta(`SELECT pg_advisory_unlock($1, hashtext($2))`)

	t.Run("locks in sorted order and unlocks in reverse", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		locker := NewAdvisoryLocker(store.DB(), nil)

		mock.ExpectExec(lockSQL).WithArgs(reservationLockSpace, "G1|1|2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(lockSQL).WithArgs(reservationLockSpace, "G1|1|2024-01-17").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(unlockSQL).WithArgs(reservationLockSpace, "G1|1|2024-01-17").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(unlockSQL).WithArgs(reservationLockSpace, "G1|1|2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))

		unlock, err := locker.Lock(context.Background(), "G1|1|2024-01-17", "G1|1|2024-01-10", "G1|1|2024-01-10")
		require.NoError(t, err)
		unlock()
		unlock()

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("releases acquired keys on failure", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		locker := NewAdvisoryLocker(store.DB(), slog.New(slog.NewTextHandler(io.Discard, nil)))

		mock.ExpectExec(lockSQL).WithArgs(reservationLockSpace, "a").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(lockSQL).WithArgs(reservationLockSpace, "b").WillReturnError(errors.New("connection reset"))
		mock.ExpectExec(unlockSQL).WithArgs(reservationLockSpace, "a").WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := locker.Lock(context.Background(), "b", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire advisory lock b")
		require.NoError(t, mock.ExpectationsWereMet())

		// The local key must be free again.
		assert.Zero(t, locker.local.Len())
	})

	t.Run("discards the connection when an unlock fails", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		locker := NewAdvisoryLocker(store.DB(), slog.New(slog.NewTextHandler(io.Discard, nil)))

		mock.ExpectExec(lockSQL).WithArgs(reservationLockSpace, "G1|1|2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(unlockSQL).WithArgs(reservationLockSpace, "G1|1|2024-01-10").WillReturnError(errors.New("connection reset"))
		mock.ExpectClose()

		unlock, err := locker.Lock(context.Background(), "G1|1|2024-01-10")
		require.NoError(t, err)
		unlock()

		require.NoError(t, mock.ExpectationsWereMet())
		assert.Zero(t, store.DB().Stats().Idle, "a connection that may still hold the lock is never pooled")
		assert.Zero(t, locker.local.Len())
	})

	t.Run("writes under a held key do not wait on it", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		locker := NewAdvisoryLocker(store.DB(), nil)
		booking := sampleBooking()
		key := slotLockKey(booking.GroundID, booking.SlotNumber, booking.Date)
		require.NotEqual(t, reservationLockSpace, slotWriteLockSpace)

		mock.ExpectExec(lockSQL).WithArgs(reservationLockSpace, key).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1, hashtext($2))`)).
			WithArgs(slotWriteLockSpace, key).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM bookings`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectExec(unlockSQL).WithArgs(reservationLockSpace, key).WillReturnResult(sqlmock.NewResult(0, 1))

		unlock, err := locker.Lock(context.Background(), key)
		require.NoError(t, err)
		require.NoError(t, store.CreateBookings(context.Background(), []persistence.Booking{booking}))
		unlock()

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
