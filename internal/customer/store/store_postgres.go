package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bankid/internal/customer/models"
	"bankid/pkg/platform/sentinel"
)

// PostgresStore persists customers in PostgreSQL across the customers,
// contacts and profiles tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed customer store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS customers (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contacts (
	customer_id  UUID PRIMARY KEY REFERENCES customers(id) ON DELETE CASCADE,
	mobile_phone TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS profiles (
	customer_id     UUID PRIMARY KEY REFERENCES customers(id) ON DELETE CASCADE,
	passport_number TEXT NOT NULL UNIQUE
);
`

// EnsureSchema creates the customer tables when they do not yet exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure customer schema: %w", err)
	}
	return nil
}

const selectCustomer = `
	SELECT c.id, c.email, COALESCE(ct.mobile_phone, ''), COALESCE(p.passport_number, ''),
	       c.status, c.created_at, c.updated_at
	FROM customers c
	LEFT JOIN contacts ct ON ct.customer_id = c.id
	LEFT JOIN profiles p ON p.customer_id = c.id
`

func (s *PostgresStore) Create(ctx context.Context, customer *models.Customer) error {
	if customer == nil {
		return fmt.Errorf("customer is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create customer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (id, email, status)
		VALUES ($1, $2, $3)
	`, customer.ID, customer.Email, string(customer.Status))
	if err != nil {
		return translatePQ("create customer", err)
	}

	if customer.MobilePhone != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contacts (customer_id, mobile_phone)
			VALUES ($1, $2)
		`, customer.ID, customer.MobilePhone)
		if err != nil {
			return translatePQ("create customer contact", err)
		}
	}

	if customer.PassportNumber != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO profiles (customer_id, passport_number)
			VALUES ($1, $2)
		`, customer.ID, customer.PassportNumber)
		if err != nil {
			return translatePQ("create customer profile", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, selectCustomer+` WHERE c.id = $1`, id)
	return scanCustomer(row, "get customer")
}

func (s *PostgresStore) FindByMobilePhone(ctx context.Context, mobilePhone string) (*models.Customer, error) {
	if mobilePhone == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, selectCustomer+` WHERE ct.mobile_phone = $1`, mobilePhone)
	return scanCustomer(row, "find customer by phone")
}

func (s *PostgresStore) FindByPassportNumber(ctx context.Context, passportNumber string) (*models.Customer, error) {
	if passportNumber == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, selectCustomer+` WHERE p.passport_number = $1`, passportNumber)
	return scanCustomer(row, "find customer by passport")
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update customer status: %w", err)
	}
	return requireRow(res, "update customer status")
}

func (s *PostgresStore) SaveProfile(ctx context.Context, id uuid.UUID, passportNumber string) error {
	if err := s.touch(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (customer_id, passport_number)
		VALUES ($1, $2)
		ON CONFLICT (customer_id) DO UPDATE SET
			passport_number = EXCLUDED.passport_number
	`, id, passportNumber)
	if err != nil {
		return translatePQ("save customer profile", err)
	}
	return nil
}

func (s *PostgresStore) DetachContacts(ctx context.Context, id uuid.UUID) error {
	if err := s.touch(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE customer_id = $1`, id); err != nil {
		return fmt.Errorf("detach customer contacts: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE customers SET email = '' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("clear customer email: %w", err)
	}
	return nil
}

func (s *PostgresStore) DetachProfile(ctx context.Context, id uuid.UUID) error {
	if err := s.touch(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE customer_id = $1`, id); err != nil {
		return fmt.Errorf("detach customer profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return requireRow(res, "delete customer")
}

// touch bumps updated_at and doubles as the existence check for mutations
// on child tables.
func (s *PostgresStore) touch(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE customers SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch customer: %w", err)
	}
	return requireRow(res, "touch customer")
}

func scanCustomer(row *sql.Row, op string) (*models.Customer, error) {
	var c models.Customer
	var status string
	err := row.Scan(&c.ID, &c.Email, &c.MobilePhone, &c.PassportNumber, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.Status = models.Status(status)
	return &c, nil
}

func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// translatePQ maps unique violations to the conflict sentinel.
func translatePQ(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
