package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bankid/internal/customer/models"
	"bankid/pkg/platform/sentinel"
)

// MemoryStore is an in-memory customer store for tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]*models.Customer
}

// NewMemory constructs an empty in-memory customer store.
func NewMemory() *MemoryStore {
	return &MemoryStore{customers: make(map[uuid.UUID]*models.Customer)}
}

func (s *MemoryStore) Create(_ context.Context, customer *models.Customer) error {
	if customer == nil {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.customers {
		if customer.MobilePhone != "" && existing.MobilePhone == customer.MobilePhone {
			return sentinel.ErrConflict
		}
	}
	cp := *customer
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.customers[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *customer
	return &cp, nil
}

func (s *MemoryStore) FindByMobilePhone(_ context.Context, mobilePhone string) (*models.Customer, error) {
	if mobilePhone == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if customer.MobilePhone == mobilePhone {
			cp := *customer
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByPassportNumber(_ context.Context, passportNumber string) (*models.Customer, error) {
	if passportNumber == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if customer.PassportNumber == passportNumber {
			cp := *customer
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	customer.Status = status
	customer.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, id uuid.UUID, passportNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	for otherID, other := range s.customers {
		if otherID != id && other.PassportNumber == passportNumber {
			return sentinel.ErrConflict
		}
	}
	customer.PassportNumber = passportNumber
	customer.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DetachContacts(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	customer.MobilePhone = ""
	customer.Email = ""
	customer.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DetachProfile(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	customer.PassportNumber = ""
	customer.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}
