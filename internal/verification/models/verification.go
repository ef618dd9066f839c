// Package models defines the verification record and its state predicates.
// Stores are pure I/O; the lockout rules live here and in the service.
package models

import (
	"time"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// Verification is the per-phone OTP record. Exactly one live record exists
// per mobile phone; the record is deleted on successful verification and on
// regeneration after an elapsed lock.
type Verification struct {
	MobilePhone string     `json:"mobile_phone" redis:"mobile_phone"`
	Code        string     `json:"code" redis:"code"`
	Attempts    int        `json:"attempts" redis:"attempts"`
	LockedUntil *time.Time `json:"locked_until,omitempty" redis:"locked_until"`
	IssuedAt    time.Time  `json:"issued_at" redis:"issued_at"`
}

// IsLockedAt reports whether the record is inside an active lock window.
func (v *Verification) IsLockedAt(now time.Time) bool {
	return v.LockedUntil != nil && v.LockedUntil.After(now)
}

// LockExpiredAt reports whether a lock was set and its window has elapsed.
func (v *Verification) LockExpiredAt(now time.Time) bool {
	return v.LockedUntil != nil && !v.LockedUntil.After(now)
}

// RemainingLock returns whole seconds until the lock ends, rounded up,
// never negative.
func (v *Verification) RemainingLock(now time.Time) int {
	if v.LockedUntil == nil {
		return 0
	}
	d := v.LockedUntil.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return secs
}

// AttemptsExhausted reports whether the attempt budget is used up.
func (v *Verification) AttemptsExhausted(max int) bool {
	return v.Attempts >= max
}

// Lock sets the lock window starting at now.
func (v *Verification) Lock(now time.Time, d time.Duration) {
	until := now.Add(d)
	v.LockedUntil = &until
}
