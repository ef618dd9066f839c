// Package service applies registration-approval decisions to customer
// accounts. The four completion paths mirror the (flow, decision) matrix of
// the approval consumer: new or existing customer, allowed or blocked.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bankid/internal/customer/models"
	"bankid/internal/customer/store"
	"bankid/pkg/platform/sentinel"
)

// HoldingsChecker reports whether a customer holds at least one active
// product. Implementations degrade to false on probe failures.
type HoldingsChecker interface {
	HasActiveHoldings(ctx context.Context, customerID uuid.UUID) (bool, error)
}

// Service mutates customer account status in response to approval
// decisions.
type Service struct {
	store    store.Store
	holdings HoldingsChecker
	logger   *slog.Logger
}

// Option configures a Service instance.
type Option func(*Service)

// WithHoldings sets the active-holdings checker used by the
// existing-customer allowed path.
func WithHoldings(holdings HoldingsChecker) Option {
	return func(s *Service) {
		if holdings != nil {
			s.holdings = holdings
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a customer service.
func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("customer store is required")
	}
	s := &Service{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CompleteNewAllowed finishes an approved first-time registration. The
// account becomes INACTIVE until the customer acquires a product.
func (s *Service) CompleteNewAllowed(ctx context.Context, customerID uuid.UUID) error {
	if err := s.store.UpdateStatus(ctx, customerID, models.StatusInactive); err != nil {
		return fmt.Errorf("complete new registration: %w", err)
	}
	s.logger.InfoContext(ctx, "new registration completed",
		"customer_id", customerID, "status", models.StatusInactive)
	return nil
}

// CompleteNewBlocked cancels a rejected first-time registration by removing
// the customer record entirely. A missing customer is logged and ignored.
func (s *Service) CompleteNewBlocked(ctx context.Context, customerID uuid.UUID) error {
	err := s.store.Delete(ctx, customerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "blocked registration for unknown customer",
				"customer_id", customerID)
			return nil
		}
		return fmt.Errorf("cancel new registration: %w", err)
	}
	s.logger.InfoContext(ctx, "new registration cancelled", "customer_id", customerID)
	return nil
}

// CompleteExistingAllowed finishes an approved registration of an existing
// bank customer. Accounts with active holdings become ACTIVE, the rest
// INACTIVE. Holdings probe failures degrade to false.
func (s *Service) CompleteExistingAllowed(ctx context.Context, customerID uuid.UUID) error {
	status := models.StatusInactive
	if s.holdings != nil {
		active, err := s.holdings.HasActiveHoldings(ctx, customerID)
		if err != nil {
			s.logger.WarnContext(ctx, "holdings check failed, assuming no active products",
				"customer_id", customerID, "error", err)
		} else if active {
			status = models.StatusActive
		}
	}

	if err := s.store.UpdateStatus(ctx, customerID, status); err != nil {
		return fmt.Errorf("complete existing registration: %w", err)
	}
	s.logger.InfoContext(ctx, "existing customer registration completed",
		"customer_id", customerID, "status", status)
	return nil
}

// CompleteExistingBlocked cancels a rejected registration of an existing
// customer: contacts and profile are detached and the account is marked
// NOT_A_CUSTOMER. A missing customer is logged and ignored.
func (s *Service) CompleteExistingBlocked(ctx context.Context, customerID uuid.UUID) error {
	if err := s.store.DetachContacts(ctx, customerID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "blocked registration for unknown customer",
				"customer_id", customerID)
			return nil
		}
		return fmt.Errorf("detach contacts: %w", err)
	}
	if err := s.store.DetachProfile(ctx, customerID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("detach profile: %w", err)
	}
	if err := s.store.UpdateStatus(ctx, customerID, models.StatusNotACustomer); err != nil {
		return fmt.Errorf("mark not a customer: %w", err)
	}
	s.logger.InfoContext(ctx, "existing customer registration cancelled",
		"customer_id", customerID, "status", models.StatusNotACustomer)
	return nil
}
