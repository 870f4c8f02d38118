package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/ground-booking/internal/persistence"
)

const customerColumns = `id, name, email, created_at, updated_at`

// UpsertCustomer inserts or updates a customer record.
func (s *Store) UpsertCustomer(ctx context.Context, customer persistence.Customer) error {
	if strings.TrimSpace(customer.ID) == "" || strings.TrimSpace(customer.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamp(customer.CreatedAt, customer.UpdatedAt)

	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			updated_at = excluded.updated_at
	`
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, query,
			customer.ID,
			customer.Name,
			customer.Email,
			formatTime(created),
			formatTime(updated),
		)
		return err
	})
}

// GetCustomer retrieves a customer by ID.
func (s *Store) GetCustomer(ctx context.Context, id string) (persistence.Customer, error) {
	if id == "" {
		return persistence.Customer{}, persistence.ErrNotFound
	}
	row := s.pool.DB().QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Customer{}, persistence.ErrNotFound
		}
		return persistence.Customer{}, s.mapper.MapError(err)
	}
	return customer, nil
}

// ListCustomers returns all customers ordered by name then ID.
func (s *Store) ListCustomers(ctx context.Context) ([]persistence.Customer, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var customers []persistence.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return customers, nil
}

func scanCustomer(row rowScanner) (persistence.Customer, error) {
	var (
		customer                   persistence.Customer
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(&customer.ID, &customer.Name, &customer.Email, &createdAtStr, &updatedAtStr); err != nil {
		return persistence.Customer{}, err
	}

	var err error
	if customer.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Customer{}, err
	}
	if customer.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Customer{}, err
	}
	return customer, nil
}
