// Package service owns the OTP state machine: code generation, attempt
// counting, and lockout enforcement keyed by mobile phone.
//
// The machine has four states per phone: absent, active, locked, and
// lock-expired. Transitions:
//
//	absent       --request-->  active (attempts=0)
//	active       --verify ok-> absent (record consumed)
//	active       --3rd miss--> locked (10 minute window)
//	locked       --time------> lock-expired
//	lock-expired --any call--> recreated active with a fresh code
//
// Requesting a new code against an unlocked record replaces the code but
// keeps the attempts counter: a caller who burned two attempts gets one more
// try after a refresh, not three.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"bankid/internal/platform/metrics"
	"bankid/internal/verification/models"
	"bankid/internal/verification/store"
)

// Identity is the customer resolved from a contact identifier.
type Identity struct {
	CustomerID  uuid.UUID
	MobilePhone string
}

// Directory resolves contact identifiers to customer identities. Lookup
// misses return (nil, nil).
type Directory interface {
	IdentityByMobilePhone(ctx context.Context, mobilePhone string) (*Identity, error)
	IdentityByPassportNumber(ctx context.Context, passportNumber string) (*Identity, error)
}

// Sender delivers an issued code to the phone. Delivery is best-effort: a
// send failure is logged, never surfaced to the caller.
type Sender interface {
	Send(ctx context.Context, mobilePhone, message string) error
}

// Service is the OTP engine.
type Service struct {
	store     store.Store
	directory Directory
	sender    Sender
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	maxAttempts  int
	lockDuration time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithSender(sender Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPolicy overrides the attempt budget and lock window.
func WithPolicy(maxAttempts int, lockDuration time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if lockDuration > 0 {
			s.lockDuration = lockDuration
		}
	}
}

// New constructs the OTP engine. The store is required; the directory is
// required only for the By-passport and WithAuth variants and may be nil in
// deployments that never use them.
func New(st store.Store, directory Directory, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("verification store is required")
	}

	s := &Service{
		store:        st,
		directory:    directory,
		logger:       slog.Default(),
		now:          time.Now,
		maxAttempts:  3,
		lockDuration: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestCode issues a verification code for the phone. A missing record is
// created with a zeroed attempts counter; an unlocked record gets a fresh
// code with its counter preserved; a locked record is rejected with the
// remaining lock seconds.
func (s *Service) RequestCode(ctx context.Context, mobilePhone string) (*models.RequestOutcome, error) {
	now := s.now()

	var out models.RequestOutcome
	var issued string

	err := s.store.Apply(ctx, mobilePhone, func(cur *models.Verification) (*models.Verification, error) {
		if cur == nil {
			code, err := generateCode()
			if err != nil {
				return nil, err
			}
			issued = code
			out = models.RequestOutcome{Status: models.RequestOK}
			return &models.Verification{
				MobilePhone: mobilePhone,
				Code:        code,
				Attempts:    0,
				IssuedAt:    now,
			}, nil
		}

		if cur.IsLockedAt(now) {
			out = models.RequestOutcome{
				Status:            models.RequestLocked,
				RetryAfterSeconds: cur.RemainingLock(now),
			}
			return cur, nil
		}

		// Unlocked or lock elapsed: replace the code in place. An expired
		// lock stays on the record; the next verify call clears it.
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		issued = code
		cur.Code = code
		cur.IssuedAt = now
		out = models.RequestOutcome{Status: models.RequestOK}
		return cur, nil
	})
	if err != nil {
		return nil, fmt.Errorf("request code: %w", err)
	}

	if issued != "" {
		s.deliver(ctx, mobilePhone, issued)
	}
	return &out, nil
}

// RequestCodeByPassport resolves a passport number to the customer's phone
// via the directory, then issues a code for that phone.
func (s *Service) RequestCodeByPassport(ctx context.Context, passportNumber string) (*models.RequestOutcome, error) {
	identity, err := s.resolveByPassport(ctx, passportNumber)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return &models.RequestOutcome{Status: models.RequestNotFound}, nil
	}
	return s.RequestCode(ctx, identity.MobilePhone)
}

// VerifyCode checks a submitted code against the live record for the phone.
//
// On a lookup miss or an elapsed lock the engine issues a fresh code as a
// side effect (CodeIssued on the outcome) and reports NotFound or Expired so
// the caller knows the submitted code cannot succeed.
func (s *Service) VerifyCode(ctx context.Context, mobilePhone, code string) (*models.VerifyOutcome, error) {
	return s.verify(ctx, mobilePhone, code)
}

// VerifyCodeWithAuth is VerifyCode plus identity resolution: success carries
// the customer ID. The phone is resolved before the state machine runs, so
// an unknown phone reports IdentityNotFound without consuming an attempt.
func (s *Service) VerifyCodeWithAuth(ctx context.Context, mobilePhone, code string) (*models.VerifyOutcome, error) {
	if s.directory == nil {
		return nil, errors.New("contact directory is not configured")
	}
	identity, err := s.directory.IdentityByMobilePhone(ctx, mobilePhone)
	if err != nil {
		return nil, fmt.Errorf("resolve mobile phone: %w", err)
	}
	if identity == nil {
		s.count(models.VerifyIdentityNotFound)
		return &models.VerifyOutcome{Status: models.VerifyIdentityNotFound}, nil
	}

	out, err := s.verify(ctx, mobilePhone, code)
	if err != nil {
		return nil, err
	}
	if out.Status == models.VerifyOK {
		out.CustomerID = identity.CustomerID
	}
	return out, nil
}

// VerifyCodeWithAuthByPassport resolves a passport number to the customer's
// phone first, then behaves like VerifyCodeWithAuth.
func (s *Service) VerifyCodeWithAuthByPassport(ctx context.Context, passportNumber, code string) (*models.VerifyOutcome, error) {
	identity, err := s.resolveByPassport(ctx, passportNumber)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		s.count(models.VerifyIdentityNotFound)
		return &models.VerifyOutcome{Status: models.VerifyIdentityNotFound}, nil
	}

	out, err := s.verify(ctx, identity.MobilePhone, code)
	if err != nil {
		return nil, err
	}
	if out.Status == models.VerifyOK {
		out.CustomerID = identity.CustomerID
	}
	return out, nil
}

func (s *Service) verify(ctx context.Context, mobilePhone, submitted string) (*models.VerifyOutcome, error) {
	now := s.now()

	var out models.VerifyOutcome
	var issued string
	var lockedNow bool

	err := s.store.Apply(ctx, mobilePhone, func(cur *models.Verification) (*models.Verification, error) {
		// Reset closure-captured state; Apply may retry under contention.
		issued = ""
		lockedNow = false

		if cur == nil {
			code, err := generateCode()
			if err != nil {
				return nil, err
			}
			issued = code
			out = models.VerifyOutcome{Status: models.VerifyNotFound, CodeIssued: true}
			return &models.Verification{
				MobilePhone: mobilePhone,
				Code:        code,
				Attempts:    0,
				IssuedAt:    now,
			}, nil
		}

		if cur.IsLockedAt(now) {
			out = models.VerifyOutcome{
				Status:            models.VerifyLocked,
				RetryAfterSeconds: cur.RemainingLock(now),
			}
			return cur, nil
		}

		if cur.LockExpiredAt(now) {
			// Lock window elapsed: recreate with a fresh code. The submitted
			// code belonged to the pre-lock record and cannot succeed.
			code, err := generateCode()
			if err != nil {
				return nil, err
			}
			issued = code
			out = models.VerifyOutcome{Status: models.VerifyExpired, CodeIssued: true}
			return &models.Verification{
				MobilePhone: mobilePhone,
				Code:        code,
				Attempts:    0,
				IssuedAt:    now,
			}, nil
		}

		cur.Attempts++
		if submitted == cur.Code {
			out = models.VerifyOutcome{Status: models.VerifyOK}
			return nil, nil
		}
		if cur.AttemptsExhausted(s.maxAttempts) {
			cur.Lock(now, s.lockDuration)
			lockedNow = true
			out = models.VerifyOutcome{
				Status:            models.VerifyLocked,
				RetryAfterSeconds: cur.RemainingLock(now),
			}
			return cur, nil
		}
		out = models.VerifyOutcome{
			Status:       models.VerifyIncorrect,
			AttemptsLeft: s.maxAttempts - cur.Attempts,
		}
		return cur, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}

	s.count(out.Status)
	if lockedNow && s.metrics != nil {
		s.metrics.LockoutsTriggered.Inc()
	}
	if issued != "" {
		s.deliver(ctx, mobilePhone, issued)
	}
	return &out, nil
}

func (s *Service) resolveByPassport(ctx context.Context, passportNumber string) (*Identity, error) {
	if s.directory == nil {
		return nil, errors.New("contact directory is not configured")
	}
	identity, err := s.directory.IdentityByPassportNumber(ctx, passportNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve passport number: %w", err)
	}
	if identity == nil || identity.MobilePhone == "" {
		return nil, nil
	}
	return identity, nil
}

func (s *Service) deliver(ctx context.Context, mobilePhone, code string) {
	if s.metrics != nil {
		s.metrics.CodesIssued.Inc()
	}
	if s.sender == nil {
		s.logger.DebugContext(ctx, "no sms sender configured, code not delivered", "mobile_phone", mobilePhone)
		return
	}
	msg := fmt.Sprintf("Your verification code is %s", code)
	if err := s.sender.Send(ctx, mobilePhone, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver verification code",
			"mobile_phone", mobilePhone,
			"error", err,
		)
	}
}

func (s *Service) count(status models.VerifyStatus) {
	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues(string(status)).Inc()
	}
}

// generateCode returns 6 uniformly random ASCII digits. crypto/rand keeps
// the code unpredictable within the 3-attempt budget.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for range models.CodeLength {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", models.CodeLength, n), nil
}
