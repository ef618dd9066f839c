package store

import (
	"context"
	"sync"

	"bankid/internal/verification/models"
)

// MemoryStore keeps verification records in a map. Suitable for tests and
// single-instance deployments; production uses RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.Verification
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.Verification),
	}
}

func (s *MemoryStore) Get(ctx context.Context, mobilePhone string) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[mobilePhone]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, rec *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.MobilePhone] = *rec
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, mobilePhone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, mobilePhone)
	return nil
}

// Apply holds the store lock for the whole read-modify-write, which
// serializes mutations per key (and, in memory, across keys too).
func (s *MemoryStore) Apply(ctx context.Context, mobilePhone string, fn ApplyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *models.Verification
	if rec, ok := s.records[mobilePhone]; ok {
		cp := rec
		cur = &cp
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.records, mobilePhone)
		return nil
	}
	s.records[next.MobilePhone] = *next
	return nil
}
