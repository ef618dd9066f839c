// Package store persists customer records with their contact and profile
// data. Implementations are pure I/O; status transition rules live in the
// customer service.
package store

import (
	"context"

	"github.com/google/uuid"

	"bankid/internal/customer/models"
)

// Store is the customer persistence contract. Lookup methods return
// (nil, nil) when no customer matches; mutations on a missing customer
// return sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, customer *models.Customer) error
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByMobilePhone(ctx context.Context, mobilePhone string) (*models.Customer, error)
	FindByPassportNumber(ctx context.Context, passportNumber string) (*models.Customer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error

	// SaveProfile attaches or replaces the passport profile of a customer.
	SaveProfile(ctx context.Context, id uuid.UUID, passportNumber string) error

	// DetachContacts removes the customer's contact records so the mobile
	// phone can no longer resolve to this account.
	DetachContacts(ctx context.Context, id uuid.UUID) error

	// DetachProfile removes the customer's passport profile.
	DetachProfile(ctx context.Context, id uuid.UUID) error

	// Delete removes the customer together with contacts and profile.
	Delete(ctx context.Context, id uuid.UUID) error
}
