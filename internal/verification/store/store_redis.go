package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bankid/internal/verification/models"
	"bankid/pkg/platform/sentinel"
)

const (
	verificationKeyPrefix = "verification:"

	// maxTxRetries bounds optimistic transaction retries under contention.
	maxTxRetries = 5
)

// RedisStore persists verification records as JSON values. Apply uses
// WATCH/MULTI so concurrent mutations for one phone serialize: the losing
// transaction fails with redis.TxFailedErr and is retried against the fresh
// record, which keeps the attempts counter and lock transitions exact.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed verification store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(mobilePhone string) string {
	return verificationKeyPrefix + mobilePhone
}

func (s *RedisStore) Get(ctx context.Context, mobilePhone string) (*models.Verification, error) {
	raw, err := s.client.Get(ctx, key(mobilePhone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	return decode(raw)
}

func (s *RedisStore) Put(ctx context.Context, rec *models.Verification) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode verification: %w", err)
	}
	if err := s.client.Set(ctx, key(rec.MobilePhone), raw, 0).Err(); err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, mobilePhone string) error {
	if err := s.client.Del(ctx, key(mobilePhone)).Err(); err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	return nil
}

// Apply runs fn inside a WATCH transaction on the record's key, retrying on
// conflict. fn may be invoked more than once; it must be pure apart from its
// captured outcome, which callers should only trust after Apply returns nil.
func (s *RedisStore) Apply(ctx context.Context, mobilePhone string, fn ApplyFunc) error {
	k := key(mobilePhone)

	txn := func(tx *redis.Tx) error {
		var cur *models.Verification
		raw, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// absent record, fn decides whether to create
		case err != nil:
			return fmt.Errorf("get verification: %w", err)
		default:
			if cur, err = decode(raw); err != nil {
				return err
			}
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, k)
				return nil
			}
			encoded, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode verification: %w", err)
			}
			pipe.Set(ctx, k, encoded, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("apply verification for %s: %w", mobilePhone, sentinel.ErrConflict)
}

func decode(raw []byte) (*models.Verification, error) {
	var rec models.Verification
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode verification: %w", err)
	}
	return &rec, nil
}
