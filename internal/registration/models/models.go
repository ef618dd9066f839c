package models

import "github.com/google/uuid"

// Decision is the back-office verdict on a registration request.
type Decision string

const (
	DecisionAllowed Decision = "ALLOWED"
	DecisionBlocked Decision = "BLOCKED"
)

// Flow distinguishes first-time registrations from existing bank customers
// completing their profile.
type Flow string

const (
	FlowNew      Flow = "NEW"
	FlowExisting Flow = "EXISTING"
)

// ApprovedRegistration is the event consumed from the approvals topic.
type ApprovedRegistration struct {
	CustomerID uuid.UUID `json:"customerId"`
	Decision   Decision  `json:"decision"`
	Flow       Flow      `json:"flow"`
}

// Valid reports whether the event carries a known (flow, decision) pair and
// a usable customer id.
func (e ApprovedRegistration) Valid() bool {
	if e.CustomerID == uuid.Nil {
		return false
	}
	if e.Decision != DecisionAllowed && e.Decision != DecisionBlocked {
		return false
	}
	return e.Flow == FlowNew || e.Flow == FlowExisting
}

// RegisterCustomer is the event produced to the requests topic when a
// customer starts or resumes registration.
type RegisterCustomer struct {
	CustomerID uuid.UUID `json:"customerId"`
	Email      string    `json:"email,omitempty"`
	Flow       Flow      `json:"flow"`
}
