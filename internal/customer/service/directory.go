package service

import (
	"context"
	"errors"
	"fmt"

	"bankid/internal/customer/store"
	verification "bankid/internal/verification/service"
)

// Directory resolves verification identities against the customer store.
// It satisfies the verification service's Directory contract.
type Directory struct {
	store store.Store
}

// NewDirectory constructs a customer-backed identity directory.
func NewDirectory(st store.Store) (*Directory, error) {
	if st == nil {
		return nil, errors.New("customer store is required")
	}
	return &Directory{store: st}, nil
}

func (d *Directory) IdentityByMobilePhone(ctx context.Context, mobilePhone string) (*verification.Identity, error) {
	customer, err := d.store.FindByMobilePhone(ctx, mobilePhone)
	if err != nil {
		return nil, fmt.Errorf("resolve identity by phone: %w", err)
	}
	if customer == nil {
		return nil, nil
	}
	return &verification.Identity{
		CustomerID:  customer.ID,
		MobilePhone: customer.MobilePhone,
	}, nil
}

func (d *Directory) IdentityByPassportNumber(ctx context.Context, passportNumber string) (*verification.Identity, error) {
	customer, err := d.store.FindByPassportNumber(ctx, passportNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve identity by passport: %w", err)
	}
	if customer == nil {
		return nil, nil
	}
	return &verification.Identity{
		CustomerID:  customer.ID,
		MobilePhone: customer.MobilePhone,
	}, nil
}
