package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bankid/internal/verification/models"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
}

func record(phone string) *models.Verification {
	return &models.Verification{
		MobilePhone: phone,
		Code:        "123456",
		Attempts:    0,
		IssuedAt:    time.Now(),
	}
}

func (s *MemoryStoreSuite) TestGet() {
	ctx := context.Background()

	s.Run("missing phone returns nil without error", func() {
		rec, err := s.store.Get(ctx, "79990000000")
		s.NoError(err)
		s.Nil(rec)
	})

	s.Run("returned record is a copy", func() {
		s.Require().NoError(s.store.Put(ctx, record("79990000001")))

		rec, err := s.store.Get(ctx, "79990000001")
		s.Require().NoError(err)
		rec.Attempts = 99

		again, err := s.store.Get(ctx, "79990000001")
		s.Require().NoError(err)
		s.Equal(0, again.Attempts)
	})
}

func (s *MemoryStoreSuite) TestPutDelete() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, record("79990000002")))
	rec, err := s.store.Get(ctx, "79990000002")
	s.Require().NoError(err)
	s.Equal("123456", rec.Code)

	s.Require().NoError(s.store.Delete(ctx, "79990000002"))
	rec, err = s.store.Get(ctx, "79990000002")
	s.NoError(err)
	s.Nil(rec)
}

func (s *MemoryStoreSuite) TestApply() {
	ctx := context.Background()

	s.Run("absent record is passed as nil and can be created", func() {
		err := s.store.Apply(ctx, "79990000003", func(cur *models.Verification) (*models.Verification, error) {
			s.Nil(cur)
			return record("79990000003"), nil
		})
		s.Require().NoError(err)

		rec, err := s.store.Get(ctx, "79990000003")
		s.Require().NoError(err)
		s.NotNil(rec)
	})

	s.Run("returning nil deletes the record", func() {
		s.Require().NoError(s.store.Put(ctx, record("79990000004")))
		err := s.store.Apply(ctx, "79990000004", func(cur *models.Verification) (*models.Verification, error) {
			s.NotNil(cur)
			return nil, nil
		})
		s.Require().NoError(err)

		rec, err := s.store.Get(ctx, "79990000004")
		s.NoError(err)
		s.Nil(rec)
	})

	s.Run("fn error aborts without writing", func() {
		s.Require().NoError(s.store.Put(ctx, record("79990000005")))
		boom := errors.New("boom")
		err := s.store.Apply(ctx, "79990000005", func(cur *models.Verification) (*models.Verification, error) {
			cur.Attempts = 2
			return cur, boom
		})
		s.ErrorIs(err, boom)

		rec, err := s.store.Get(ctx, "79990000005")
		s.Require().NoError(err)
		s.Equal(0, rec.Attempts)
	})
}

// TestApplySerializes runs concurrent increments through Apply; no update may
// be lost.
func (s *MemoryStoreSuite) TestApplySerializes() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, record("79990000006")))

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			_ = s.store.Apply(ctx, "79990000006", func(cur *models.Verification) (*models.Verification, error) {
				cur.Attempts++
				return cur, nil
			})
		}()
	}
	wg.Wait()

	rec, err := s.store.Get(ctx, "79990000006")
	s.Require().NoError(err)
	s.Equal(goroutines, rec.Attempts)
}
