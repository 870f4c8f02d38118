package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/ground-booking/internal/persistence"
)

const groundColumns = `id, name, slot_count, price_per_slot_hour, currency, created_at, updated_at`

// UpsertGround inserts the ground or updates every mutable column of an
// existing one. CreatedAt of an existing row is preserved.
func (s *Store) UpsertGround(ctx context.Context, ground persistence.Ground) error {
	if strings.TrimSpace(ground.ID) == "" || ground.SlotCount <= 0 || ground.PricePerSlotHour < 0 {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamp(ground.CreatedAt, ground.UpdatedAt)

	query := `
		INSERT INTO grounds (` + groundColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			slot_count = excluded.slot_count,
			price_per_slot_hour = excluded.price_per_slot_hour,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, query,
			ground.ID,
			ground.Name,
			ground.SlotCount,
			ground.PricePerSlotHour,
			ground.Currency,
			formatTime(created),
			formatTime(updated),
		)
		return err
	})
}

// GetGround retrieves a ground by ID.
func (s *Store) GetGround(ctx context.Context, id string) (persistence.Ground, error) {
	if id == "" {
		return persistence.Ground{}, persistence.ErrNotFound
	}
	row := s.pool.DB().QueryRowContext(ctx, `SELECT `+groundColumns+` FROM grounds WHERE id = ?`, id)
	ground, err := scanGround(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Ground{}, persistence.ErrNotFound
		}
		return persistence.Ground{}, s.mapper.MapError(err)
	}
	return ground, nil
}

// ListGrounds returns all grounds ordered by name then ID.
func (s *Store) ListGrounds(ctx context.Context) ([]persistence.Ground, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `SELECT `+groundColumns+` FROM grounds ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var grounds []persistence.Ground
	for rows.Next() {
		ground, err := scanGround(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		grounds = append(grounds, ground)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return grounds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGround(row rowScanner) (persistence.Ground, error) {
	var (
		ground                     persistence.Ground
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&ground.ID,
		&ground.Name,
		&ground.SlotCount,
		&ground.PricePerSlotHour,
		&ground.Currency,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Ground{}, err
	}

	var err error
	if ground.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Ground{}, err
	}
	if ground.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Ground{}, err
	}
	return ground, nil
}
