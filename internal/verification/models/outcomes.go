package models

import "github.com/google/uuid"

// RequestStatus classifies the result of a code request.
type RequestStatus string

const (
	RequestOK       RequestStatus = "ok"
	RequestLocked   RequestStatus = "locked"
	RequestNotFound RequestStatus = "not_found"
)

// RequestOutcome is the result of RequestCode. RetryAfterSeconds is set only
// while a lock window is active.
type RequestOutcome struct {
	Status            RequestStatus
	RetryAfterSeconds int
}

// VerifyStatus classifies the result of a verification attempt.
type VerifyStatus string

const (
	VerifyOK               VerifyStatus = "ok"
	VerifyIncorrect        VerifyStatus = "incorrect"
	VerifyLocked           VerifyStatus = "locked"
	VerifyExpired          VerifyStatus = "expired"
	VerifyNotFound         VerifyStatus = "not_found"
	VerifyIdentityNotFound VerifyStatus = "identity_not_found"
)

// VerifyOutcome is the result of a verification attempt. Outcomes are values,
// not errors: infrastructure failures travel separately.
//
// CodeIssued reports the verify-or-issue side effect: a fresh code was
// generated and delivered because the record was absent or its lock had
// expired, so the submitted code can no longer succeed.
type VerifyOutcome struct {
	Status            VerifyStatus
	RetryAfterSeconds int
	AttemptsLeft      int
	CodeIssued        bool
	CustomerID        uuid.UUID
}
