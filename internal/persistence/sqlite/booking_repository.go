package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ground-booking/internal/persistence"
)

const bookingColumns = `id, ground_id, slot_number, booking_date, start_minute, end_minute, customer_id,
	status, booking_type, notes, amount, currency, cancel_reason, rescheduled_from, series_id,
	created_at, updated_at`

// CreateBookings inserts bookings in one transaction. Each row is checked
// against blocking bookings already stored (including earlier rows of the
// same batch); any overlap aborts the whole batch with ErrOverlap.
func (s *Store) CreateBookings(ctx context.Context, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, booking := range bookings {
				if err := s.insertBooking(ctx, tx, booking, ""); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ReplaceBooking applies update to the original booking and inserts
// replacement atomically. The original does not count as a conflict for
// its replacement.
func (s *Store) ReplaceBooking(ctx context.Context, update persistence.StatusUpdate, replacement persistence.Booking) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := s.updateStatus(ctx, tx, update); err != nil {
				return err
			}
			return s.insertBooking(ctx, tx, replacement, update.BookingID)
		})
	})
}

// UpdateBookingStatus moves a booking from update.FromStatus to
// update.ToStatus. It returns ErrStaleWrite when the stored status differs.
func (s *Store) UpdateBookingStatus(ctx context.Context, update persistence.StatusUpdate) (persistence.Booking, error) {
	var stored persistence.Booking
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			booking, err := s.updateStatus(ctx, tx, update)
			if err != nil {
				return err
			}
			stored = booking
			return nil
		})
	})
	if err != nil {
		return persistence.Booking{}, err
	}
	return stored, nil
}

// GetBooking retrieves a booking by ID.
func (s *Store) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return s.getBooking(ctx, s.pool.DB(), id)
}

// ListBookings returns bookings matching filter ordered by date, start
// minute, then ID.
func (s *Store) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.GroundID != "" {
		clauses = append(clauses, "ground_id = ?")
		args = append(args, filter.GroundID)
	}
	if filter.SlotNumber > 0 {
		clauses = append(clauses, "slot_number = ?")
		args = append(args, filter.SlotNumber)
	}
	if filter.Date != nil {
		clauses = append(clauses, "booking_date = ?")
		args = append(args, filter.Date.UTC().Format(persistence.DateLayout))
	}
	if filter.OnOrBefore != nil {
		clauses = append(clauses, "booking_date <= ?")
		args = append(args, filter.OnOrBefore.UTC().Format(persistence.DateLayout))
	}
	if filter.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY booking_date ASC, start_minute ASC, id ASC`

	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return bookings, nil
}

func (s *Store) insertBooking(ctx context.Context, q queryer, booking persistence.Booking, ignoreID string) error {
	if booking.ID == "" || booking.StartMinute >= booking.EndMinute {
		return persistence.ErrConstraintViolation
	}

	if booking.Blocking() {
		var conflictID string
		err := q.QueryRowContext(ctx, `
			SELECT id FROM bookings
			WHERE ground_id = ? AND slot_number = ? AND booking_date = ?
				AND status <> ? AND start_minute < ? AND end_minute > ? AND id <> ?
			LIMIT 1
		`,
			booking.GroundID,
			booking.SlotNumber,
			booking.Date.UTC().Format(persistence.DateLayout),
			persistence.StatusCancelled,
			booking.EndMinute,
			booking.StartMinute,
			ignoreID,
		).Scan(&conflictID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: booking %s overlaps %s", persistence.ErrOverlap, booking.ID, conflictID)
		case !errors.Is(err, sql.ErrNoRows):
			return s.mapper.MapError(err)
		}
	}

	created, updated := s.stamp(booking.CreatedAt, booking.UpdatedAt)
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		booking.ID,
		booking.GroundID,
		booking.SlotNumber,
		booking.Date.UTC().Format(persistence.DateLayout),
		booking.StartMinute,
		booking.EndMinute,
		booking.CustomerID,
		booking.Status,
		booking.BookingType,
		booking.Notes,
		booking.Amount,
		booking.Currency,
		booking.CancelReason,
		booking.RescheduledFrom,
		booking.SeriesID,
		formatTime(created),
		formatTime(updated),
	)
	return s.mapper.MapError(err)
}

func (s *Store) updateStatus(ctx context.Context, q queryer, update persistence.StatusUpdate) (persistence.Booking, error) {
	at := update.At
	if at.IsZero() {
		at = s.now()
	}

	result, err := q.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?,
			cancel_reason = CASE WHEN ? <> '' THEN ? ELSE cancel_reason END,
			updated_at = ?
		WHERE id = ? AND status = ?
	`,
		update.ToStatus,
		update.Reason, update.Reason,
		formatTime(at),
		update.BookingID,
		update.FromStatus,
	)
	if err != nil {
		return persistence.Booking{}, s.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.getBooking(ctx, q, update.BookingID)
		if err != nil {
			return persistence.Booking{}, err
		}
		return persistence.Booking{}, fmt.Errorf("%w: booking %s is %s, expected %s",
			persistence.ErrStaleWrite, current.ID, current.Status, update.FromStatus)
	}
	return s.getBooking(ctx, q, update.BookingID)
}

func (s *Store) getBooking(ctx context.Context, q queryer, id string) (persistence.Booking, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, s.mapper.MapError(err)
	}
	return booking, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking                             persistence.Booking
		dateStr, createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&booking.ID,
		&booking.GroundID,
		&booking.SlotNumber,
		&dateStr,
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
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Booking{}, err
	}

	var err error
	if booking.Date, err = time.Parse(persistence.DateLayout, dateStr); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse booking_date: %w", err)
	}
	if booking.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
