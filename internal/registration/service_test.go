package registration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	custmodels "bankid/internal/customer/models"
	custstore "bankid/internal/customer/store"
	"bankid/internal/registration/models"
	dErrors "bankid/pkg/domain-errors"
)

type recordingPublisher struct {
	topics []string
	keys   [][]byte
	values [][]byte
	err    error
}

func (p *recordingPublisher) Produce(_ context.Context, topic string, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func (p *recordingPublisher) lastEvent(t *testing.T) models.RegisterCustomer {
	t.Helper()
	if len(p.values) == 0 {
		t.Fatalf("no events published")
	}
	var event models.RegisterCustomer
	if err := json.Unmarshal(p.values[len(p.values)-1], &event); err != nil {
		t.Fatalf("decode published event: %v", err)
	}
	return event
}

type RegistrationServiceSuite struct {
	suite.Suite
	store     *custstore.MemoryStore
	publisher *recordingPublisher
	service   *Service
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.store = custstore.NewMemory()
	s.publisher = &recordingPublisher{}

	var err error
	s.service, err = NewService(s.store, s.publisher, "registration.requests")
	s.Require().NoError(err)
}

func (s *RegistrationServiceSuite) TestNewService() {
	_, err := NewService(nil, s.publisher, "topic")
	s.Error(err)
	_, err = NewService(s.store, nil, "topic")
	s.Error(err)
	_, err = NewService(s.store, s.publisher, "")
	s.Error(err)
}

func (s *RegistrationServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("creates a pending customer and publishes the request", func() {
		customer, err := s.service.Register(ctx, "79370000300", "user@example.com")
		s.Require().NoError(err)
		s.Equal(custmodels.StatusPending, customer.Status)
		s.NotEqual(uuid.Nil, customer.ID)

		stored, err := s.store.Get(ctx, customer.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored)
		s.Equal("79370000300", stored.MobilePhone)

		s.Equal([]string{"registration.requests"}, s.publisher.topics)
		event := s.publisher.lastEvent(s.T())
		s.Equal(customer.ID, event.CustomerID)
		s.Equal(models.FlowNew, event.Flow)
		s.Equal("user@example.com", event.Email)
		s.Equal(customer.ID.String(), string(s.publisher.keys[0]), "events are keyed by customer id")
	})

	s.Run("registered phone is a conflict", func() {
		_, err := s.service.Register(ctx, "79370000300", "other@example.com")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("publish failure fails the registration", func() {
		s.publisher.err = errors.New("broker down")
		_, err := s.service.Register(ctx, "79370000301", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *RegistrationServiceSuite) TestCompleteProfile() {
	ctx := context.Background()

	s.Run("attaches passport and republishes for review", func() {
		created, err := s.service.Register(ctx, "79370000302", "user@example.com")
		s.Require().NoError(err)

		customer, err := s.service.CompleteProfile(ctx, "79370000302", "AB1234567")
		s.Require().NoError(err)
		s.Equal("AB1234567", customer.PassportNumber)
		s.Equal(custmodels.StatusPending, customer.Status)
		s.Equal(created.ID, customer.ID)

		event := s.publisher.lastEvent(s.T())
		s.Equal(models.FlowExisting, event.Flow)
		s.Equal(created.ID, event.CustomerID)
	})

	s.Run("unknown phone is not found", func() {
		_, err := s.service.CompleteProfile(ctx, "70000000000", "CD7654321")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrationServiceSuite) TestStatus() {
	ctx := context.Background()

	s.Run("unknown phone is unregistered", func() {
		status, err := s.service.Status(ctx, "70000000000")
		s.Require().NoError(err)
		s.Equal(custmodels.StatusUnregistered, status)
	})

	s.Run("known phone reports the stored status", func() {
		customer, err := s.service.Register(ctx, "79370000303", "")
		s.Require().NoError(err)
		s.Require().NoError(s.store.UpdateStatus(ctx, customer.ID, custmodels.StatusActive))

		status, err := s.service.Status(ctx, "79370000303")
		s.Require().NoError(err)
		s.Equal(custmodels.StatusActive, status)
	})
}
