package postgres

import (
	"context"
	"strings"

	"github.com/example/ground-booking/internal/persistence"
)

const groundColumns = `id, name, slot_count, price_per_slot_hour, currency, created_at, updated_at`

// UpsertGround inserts or updates a ground.
func (s *Store) UpsertGround(ctx context.Context, ground persistence.Ground) error {
	if strings.TrimSpace(ground.ID) == "" || ground.SlotCount <= 0 || ground.PricePerSlotHour < 0 {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamp(ground.CreatedAt, ground.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grounds (`+groundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slot_count = EXCLUDED.slot_count,
			price_per_slot_hour = EXCLUDED.price_per_slot_hour,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at
	`, ground.ID, ground.Name, ground.SlotCount, ground.PricePerSlotHour, ground.Currency, created, updated)
	return mapError(err)
}

// GetGround retrieves a ground by ID.
func (s *Store) GetGround(ctx context.Context, id string) (persistence.Ground, error) {
	var ground persistence.Ground
	err := s.db.QueryRowContext(ctx, `SELECT `+groundColumns+` FROM grounds WHERE id = $1`, id).Scan(
		&ground.ID, &ground.Name, &ground.SlotCount, &ground.PricePerSlotHour,
		&ground.Currency, &ground.CreatedAt, &ground.UpdatedAt,
	)
	if err != nil {
		return persistence.Ground{}, mapError(err)
	}
	return ground, nil
}

// ListGrounds returns all grounds ordered by name then ID.
func (s *Store) ListGrounds(ctx context.Context) ([]persistence.Ground, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groundColumns+` FROM grounds ORDER BY name, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var grounds []persistence.Ground
	for rows.Next() {
		var ground persistence.Ground
		if err := rows.Scan(
			&ground.ID, &ground.Name, &ground.SlotCount, &ground.PricePerSlotHour,
			&ground.Currency, &ground.CreatedAt, &ground.UpdatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		grounds = append(grounds, ground)
	}
	return grounds, mapError(rows.Err())
}

const customerColumns = `id, name, email, created_at, updated_at`

// UpsertCustomer inserts or updates a customer.
func (s *Store) UpsertCustomer(ctx context.Context, customer persistence.Customer) error {
	if strings.TrimSpace(customer.ID) == "" || strings.TrimSpace(customer.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamp(customer.CreatedAt, customer.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`, customer.ID, customer.Name, customer.Email, created, updated)
	return mapError(err)
}

// GetCustomer retrieves a customer by ID.
func (s *Store) GetCustomer(ctx context.Context, id string) (persistence.Customer, error) {
	var customer persistence.Customer
	err := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).Scan(
		&customer.ID, &customer.Name, &customer.Email, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		return persistence.Customer{}, mapError(err)
	}
	return customer, nil
}

// ListCustomers returns all customers ordered by name then ID.
func (s *Store) ListCustomers(ctx context.Context) ([]persistence.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var customers []persistence.Customer
	for rows.Next() {
		var customer persistence.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Email, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		customers = append(customers, customer)
	}
	return customers, mapError(rows.Err())
}
