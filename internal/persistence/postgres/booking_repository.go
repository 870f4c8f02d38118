package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/ground-booking/internal/persistence"
)

const bookingColumns = `id, ground_id, slot_number, booking_date, start_minute, end_minute, customer_id,
	status, booking_type, notes, amount, currency, cancel_reason, rescheduled_from, series_id,
	created_at, updated_at`

// slotLockKey names the advisory lock guarding one ground slot on one date.
func slotLockKey(groundID string, slotNumber int, date time.Time) string {
	return fmt.Sprintf("%s|%d|%s", groundID, slotNumber, date.UTC().Format(persistence.DateLayout))
}

// CreateBookings inserts bookings in one transaction. Each slot date is
// serialized with a transaction-scoped advisory lock before the overlap
// check so concurrent writers in other processes cannot interleave.
func (s *Store) CreateBookings(ctx context.Context, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockSlots(ctx, tx, bookings...); err != nil {
			return err
		}
		for _, booking := range bookings {
			if err := s.insertBooking(ctx, tx, booking, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceBooking applies update and inserts replacement atomically.
func (s *Store) ReplaceBooking(ctx context.Context, update persistence.StatusUpdate, replacement persistence.Booking) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockSlots(ctx, tx, replacement); err != nil {
			return err
		}
		if _, err := s.updateStatus(ctx, tx, update); err != nil {
			return err
		}
		return s.insertBooking(ctx, tx, replacement, update.BookingID)
	})
}

// UpdateBookingStatus applies a guarded status change.
func (s *Store) UpdateBookingStatus(ctx context.Context, update persistence.StatusUpdate) (persistence.Booking, error) {
	var stored persistence.Booking
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		booking, err := s.updateStatus(ctx, tx, update)
		stored = booking
		return err
	})
	if err != nil {
		return persistence.Booking{}, err
	}
	return stored, nil
}

// GetBooking retrieves a booking by ID.
func (s *Store) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, s.db, id)
}

// ListBookings returns bookings matching filter ordered by date, start
// minute, then ID.
func (s *Store) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query, args := buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, mapError(rows.Err())
}

func buildListQuery(filter persistence.BookingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.GroundID != "" {
		add("ground_id = $%d", filter.GroundID)
	}
	if filter.SlotNumber > 0 {
		add("slot_number = $%d", filter.SlotNumber)
	}
	if filter.Date != nil {
		add("booking_date = $%d", filter.Date.UTC().Format(persistence.DateLayout))
	}
	if filter.OnOrBefore != nil {
		add("booking_date <= $%d", filter.OnOrBefore.UTC().Format(persistence.DateLayout))
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(filter.Statuses))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	return query + ` ORDER BY booking_date, start_minute, id`, args
}

// lockSlots takes transaction-scoped advisory locks for the slot dates of
// bookings in sorted order. They live in slotWriteLockSpace so a caller
// holding the same key through AdvisoryLocker does not block its own write.
func lockSlots(ctx context.Context, tx *sql.Tx, bookings ...persistence.Booking) error {
	keys := make([]string, 0, len(bookings))
	seen := make(map[string]struct{}, len(bookings))
	for _, booking := range bookings {
		key := slotLockKey(booking.GroundID, booking.SlotNumber, booking.Date)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, slotWriteLockSpace, key); err != nil {
			return fmt.Errorf("failed to lock slot %s: %w", key, mapError(err))
		}
	}
	return nil
}

func (s *Store) insertBooking(ctx context.Context, q queryer, booking persistence.Booking, ignoreID string) error {
	if booking.ID == "" || booking.StartMinute >= booking.EndMinute {
		return persistence.ErrConstraintViolation
	}
	date := booking.Date.UTC().Format(persistence.DateLayout)

	if booking.Blocking() {
		var conflictID string
		err := q.QueryRowContext(ctx, `
			SELECT id FROM bookings
			WHERE ground_id = $1 AND slot_number = $2 AND booking_date = $3
				AND status <> $4 AND start_minute < $5 AND end_minute > $6 AND id <> $7
			LIMIT 1
		`, booking.GroundID, booking.SlotNumber, date, persistence.StatusCancelled,
			booking.EndMinute, booking.StartMinute, ignoreID,
		).Scan(&conflictID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: booking %s overlaps %s", persistence.ErrOverlap, booking.ID, conflictID)
		case !errors.Is(err, sql.ErrNoRows):
			return mapError(err)
		}
	}

	created, updated := s.stamp(booking.CreatedAt, booking.UpdatedAt)
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		booking.ID, booking.GroundID, booking.SlotNumber, date,
		booking.StartMinute, booking.EndMinute, booking.CustomerID, booking.Status,
		booking.BookingType, booking.Notes, booking.Amount, booking.Currency,
		booking.CancelReason, booking.RescheduledFrom, booking.SeriesID,
		created, updated,
	)
	return mapError(err)
}

func (s *Store) updateStatus(ctx context.Context, q queryer, update persistence.StatusUpdate) (persistence.Booking, error) {
	at := update.At
	if at.IsZero() {
		at = s.now()
	}

	row := q.QueryRowContext(ctx, `
		UPDATE bookings
		SET status = $1,
			cancel_reason = CASE WHEN $2 <> '' THEN $2 ELSE cancel_reason END,
			updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING `+bookingColumns,
		update.ToStatus, update.Reason, at.UTC(), update.BookingID, update.FromStatus,
	)
	booking, err := scanBooking(row)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return persistence.Booking{}, mapError(err)
	}

	current, err := getBooking(ctx, q, update.BookingID)
	if err != nil {
		return persistence.Booking{}, err
	}
	return persistence.Booking{}, fmt.Errorf("%w: booking %s is %s, expected %s",
		persistence.ErrStaleWrite, current.ID, current.Status, update.FromStatus)
}

func getBooking(ctx context.Context, q queryer, id string) (persistence.Booking, error) {
	booking, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return booking, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	if err := row.Scan(
		&booking.ID,
		&booking.GroundID,
		&booking.SlotNumber,
		&booking.Date,
		&booking.StartMinute,
		&booking.EndMinute,
		&booking.CustomerID,
		&booking.Status,
		&booking.BookingType,
		&booking.Notes,
		&booking.Amount,
		&booking.Currency,
		&booking.CancelReason,
		&booking.RescheduledFrom,
		&booking.SeriesID,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.Date = time.Date(booking.Date.Year(), booking.Date.Month(), booking.Date.Day(), 0, 0, 0, 0, time.UTC)
	return booking, nil
}
