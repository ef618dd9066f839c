package registration

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	custmodels "bankid/internal/customer/models"
	custstore "bankid/internal/customer/store"
	"bankid/internal/registration/models"
	dErrors "bankid/pkg/domain-errors"
	"bankid/pkg/platform/sentinel"
)

// Publisher hands registration events to the broker.
type Publisher interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Service starts registrations and answers registration status lookups.
// Approval verdicts for the published events come back through the
// ApprovalHandler.
type Service struct {
	store     custstore.Store
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a registration service publishing to the given
// requests topic.
func NewService(st custstore.Store, publisher Publisher, topic string, opts ...ServiceOption) (*Service, error) {
	if st == nil {
		return nil, errors.New("customer store is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("requests topic is required")
	}
	s := &Service{
		store:     st,
		publisher: publisher,
		topic:     topic,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Register starts a first-time registration: the customer record is created
// in PENDING and a RegisterCustomer event is published for review.
func (s *Service) Register(ctx context.Context, mobilePhone, email string) (*custmodels.Customer, error) {
	existing, err := s.store.FindByMobilePhone(ctx, mobilePhone)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup customer")
	}
	if existing != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "mobile phone is already registered")
	}

	customer := &custmodels.Customer{
		ID:          uuid.New(),
		Email:       email,
		MobilePhone: mobilePhone,
		Status:      custmodels.StatusPending,
	}
	if err := s.store.Create(ctx, customer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "mobile phone is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create customer")
	}

	if err := s.publish(ctx, customer, models.FlowNew); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registration started",
		"customer_id", customer.ID, "flow", models.FlowNew)
	return customer, nil
}

// CompleteProfile resumes registration for an existing bank customer: the
// passport profile is attached, the account returns to PENDING and a
// RegisterCustomer event is published for review.
func (s *Service) CompleteProfile(ctx context.Context, mobilePhone, passportNumber string) (*custmodels.Customer, error) {
	customer, err := s.store.FindByMobilePhone(ctx, mobilePhone)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup customer")
	}
	if customer == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no customer for this mobile phone")
	}

	if err := s.store.SaveProfile(ctx, customer.ID, passportNumber); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "passport number is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save profile")
	}
	if err := s.store.UpdateStatus(ctx, customer.ID, custmodels.StatusPending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update status")
	}
	customer.PassportNumber = passportNumber
	customer.Status = custmodels.StatusPending

	if err := s.publish(ctx, customer, models.FlowExisting); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registration resumed",
		"customer_id", customer.ID, "flow", models.FlowExisting)
	return customer, nil
}

// Status reports the registration status for a mobile phone. Unknown phones
// are UNREGISTERED rather than an error.
func (s *Service) Status(ctx context.Context, mobilePhone string) (custmodels.Status, error) {
	customer, err := s.store.FindByMobilePhone(ctx, mobilePhone)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "lookup customer")
	}
	if customer == nil {
		return custmodels.StatusUnregistered, nil
	}
	return customer.Status, nil
}

func (s *Service) publish(ctx context.Context, customer *custmodels.Customer, flow models.Flow) error {
	event := models.RegisterCustomer{
		CustomerID: customer.ID,
		Email:      customer.Email,
		Flow:       flow,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode register event")
	}
	key := []byte(customer.ID.String())
	if err := s.publisher.Produce(ctx, s.topic, key, value); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "publish register event")
	}
	return nil
}
