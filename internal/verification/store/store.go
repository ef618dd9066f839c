// Package store persists verification records keyed by mobile phone.
package store

import (
	"context"

	"bankid/internal/verification/models"
)

// Store is the keyed verification record store. Get returns (nil, nil) on a
// missing key so callers branch on record presence, not on error type.
//
// Apply is the serialized read-modify-write entry point: implementations
// guarantee that concurrent Apply calls for the same phone do not interleave
// (per-key locking in memory, WATCH/MULTI optimistic transactions in Redis).
// All state-machine mutations go through Apply; Put and Delete exist for
// direct writes where no decision depends on the current value.
type Store interface {
	Get(ctx context.Context, mobilePhone string) (*models.Verification, error)
	Put(ctx context.Context, rec *models.Verification) error
	Delete(ctx context.Context, mobilePhone string) error
	Apply(ctx context.Context, mobilePhone string, fn ApplyFunc) error
}

// ApplyFunc receives the current record (nil if absent) and returns the
// record to persist. Returning (nil, nil) deletes the record; returning the
// input unchanged with a nil error keeps it. Errors abort without writing.
type ApplyFunc func(cur *models.Verification) (next *models.Verification, err error)
