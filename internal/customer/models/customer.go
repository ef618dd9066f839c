package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the registration state of a customer account.
type Status string

const (
	StatusUnregistered Status = "UNREGISTERED"
	StatusPending      Status = "PENDING"
	StatusActive       Status = "ACTIVE"
	StatusInactive     Status = "INACTIVE"
	StatusNotACustomer Status = "NOT_A_CUSTOMER"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnregistered, StatusPending, StatusActive, StatusInactive, StatusNotACustomer:
		return true
	}
	return false
}

// Customer is a bank customer record with its contact and profile data
// flattened onto it. MobilePhone is empty after contacts are detached,
// PassportNumber is empty until a profile is attached.
type Customer struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email,omitempty"`
	MobilePhone    string    `json:"mobilePhone,omitempty"`
	PassportNumber string    `json:"passportNumber,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
