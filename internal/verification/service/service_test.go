package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bankid/internal/verification/models"
	"bankid/internal/verification/store"
)

const testPhone = "79370000000"

type stubDirectory struct {
	byPhone    map[string]*Identity
	byPassport map[string]*Identity
}

func (d *stubDirectory) IdentityByMobilePhone(_ context.Context, phone string) (*Identity, error) {
	return d.byPhone[phone], nil
}

func (d *stubDirectory) IdentityByPassportNumber(_ context.Context, passport string) (*Identity, error) {
	return d.byPassport[passport], nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, phone, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, phone)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type OtpServiceSuite struct {
	suite.Suite
	store     *store.MemoryStore
	directory *stubDirectory
	sender    *recordingSender
	service   *Service
	now       time.Time
}

func TestOtpServiceSuite(t *testing.T) {
	suite.Run(t, new(OtpServiceSuite))
}

func (s *OtpServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.directory = &stubDirectory{
		byPhone:    map[string]*Identity{},
		byPassport: map[string]*Identity{},
	}
	s.sender = &recordingSender{}
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.store, s.directory,
		WithSender(s.sender),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

// advance moves the test clock forward.
func (s *OtpServiceSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

// currentCode reads the live code straight from the store.
func (s *OtpServiceSuite) currentCode(phone string) string {
	rec, err := s.store.Get(context.Background(), phone)
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	return rec.Code
}

// wrongCode returns a code guaranteed not to match the live one.
func (s *OtpServiceSuite) wrongCode(phone string) string {
	if s.currentCode(phone) == "111111" {
		return "222222"
	}
	return "111111"
}

func (s *OtpServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.directory)
		s.Error(err)
		s.Contains(err.Error(), "verification store is required")
	})

	s.Run("nil directory is allowed", func() {
		svc, err := New(s.store, nil)
		s.NoError(err)
		s.NotNil(svc)
	})
}

func (s *OtpServiceSuite) TestRequestCode() {
	ctx := context.Background()

	s.Run("creates record with zero attempts", func() {
		out, err := s.service.RequestCode(ctx, testPhone)
		s.Require().NoError(err)
		s.Equal(models.RequestOK, out.Status)

		rec, err := s.store.Get(ctx, testPhone)
		s.Require().NoError(err)
		s.Require().NotNil(rec)
		s.Equal(0, rec.Attempts)
		s.Len(rec.Code, models.CodeLength)
		s.Nil(rec.LockedUntil)
		s.Equal(s.now, rec.IssuedAt)
		s.Equal(1, s.sender.count())
	})

	s.Run("refresh replaces code but preserves attempts", func() {
		phone := "79370000001"
		_, err := s.service.RequestCode(ctx, phone)
		s.Require().NoError(err)
		first := s.currentCode(phone)

		_, err = s.service.VerifyCode(ctx, phone, s.wrongCode(phone))
		s.Require().NoError(err)

		s.advance(time.Minute)
		out, err := s.service.RequestCode(ctx, phone)
		s.Require().NoError(err)
		s.Equal(models.RequestOK, out.Status)

		rec, err := s.store.Get(ctx, phone)
		s.Require().NoError(err)
		s.NotEqual(first, rec.Code)
		s.Equal(1, rec.Attempts, "attempts survive code refresh")
		s.Equal(s.now, rec.IssuedAt)
	})
}

func (s *OtpServiceSuite) TestVerifyCode() {
	ctx := context.Background()

	s.Run("correct code consumes the record", func() {
		phone := "79370000002"
		_, err := s.service.RequestCode(ctx, phone)
		s.Require().NoError(err)

		out, err := s.service.VerifyCode(ctx, phone, s.currentCode(phone))
		s.Require().NoError(err)
		s.Equal(models.VerifyOK, out.Status)

		rec, err := s.store.Get(ctx, phone)
		s.NoError(err)
		s.Nil(rec, "record is deleted on success")
	})

	s.Run("verify after success reports not found and reissues", func() {
		phone := "79370000003"
		_, err := s.service.RequestCode(ctx, phone)
		s.Require().NoError(err)
		code := s.currentCode(phone)

		_, err = s.service.VerifyCode(ctx, phone, code)
		s.Require().NoError(err)

		out, err := s.service.VerifyCode(ctx, phone, code)
		s.Require().NoError(err)
		s.Equal(models.VerifyNotFound, out.Status)
		s.True(out.CodeIssued)

		rec, err := s.store.Get(ctx, phone)
		s.Require().NoError(err)
		s.NotNil(rec, "a fresh record was issued on the miss")
		s.Equal(0, rec.Attempts)
	})

	s.Run("wrong code increments attempts", func() {
		phone := "79370000004"
		_, err := s.service.RequestCode(ctx, phone)
		s.Require().NoError(err)

		out, err := s.service.VerifyCode(ctx, phone, s.wrongCode(phone))
		s.Require().NoError(err)
		s.Equal(models.VerifyIncorrect, out.Status)
		s.Equal(2, out.AttemptsLeft)

		rec, err := s.store.Get(ctx, phone)
		s.Require().NoError(err)
		s.Equal(1, rec.Attempts)
	})
}

// TestLockoutScenario walks the end-to-end lockout sequence: three wrong
// attempts lock the phone for 600 seconds and reject further requests.
func (s *OtpServiceSuite) TestLockoutScenario() {
	ctx := context.Background()

	out, err := s.service.RequestCode(ctx, testPhone)
	s.Require().NoError(err)
	s.Equal(models.RequestOK, out.Status)

	vout, err := s.service.VerifyCode(ctx, testPhone, s.wrongCode(testPhone))
	s.Require().NoError(err)
	s.Equal(models.VerifyIncorrect, vout.Status)

	vout, err = s.service.VerifyCode(ctx, testPhone, s.wrongCode(testPhone))
	s.Require().NoError(err)
	s.Equal(models.VerifyIncorrect, vout.Status)
	s.Equal(1, vout.AttemptsLeft)

	vout, err = s.service.VerifyCode(ctx, testPhone, s.wrongCode(testPhone))
	s.Require().NoError(err)
	s.Equal(models.VerifyLocked, vout.Status)
	s.Equal(600, vout.RetryAfterSeconds)

	rec, err := s.store.Get(ctx, testPhone)
	s.Require().NoError(err)
	s.Require().NotNil(rec.LockedUntil)
	s.Equal(s.now.Add(10*time.Minute), *rec.LockedUntil)

	s.Run("request while locked reports remaining seconds", func() {
		out, err := s.service.RequestCode(ctx, testPhone)
		s.Require().NoError(err)
		s.Equal(models.RequestLocked, out.Status)
		s.Equal(600, out.RetryAfterSeconds)
	})

	s.Run("remaining seconds decrease over time", func() {
		s.advance(4 * time.Minute)
		out, err := s.service.RequestCode(ctx, testPhone)
		s.Require().NoError(err)
		s.Equal(models.RequestLocked, out.Status)
		s.Equal(360, out.RetryAfterSeconds)

		vout, err := s.service.VerifyCode(ctx, testPhone, "000000")
		s.Require().NoError(err)
		s.Equal(models.VerifyLocked, vout.Status)
		s.Equal(360, vout.RetryAfterSeconds)
	})

	s.Run("verify after lock expiry recreates and reports expired", func() {
		s.advance(7 * time.Minute)
		vout, err := s.service.VerifyCode(ctx, testPhone, "000000")
		s.Require().NoError(err)
		s.Equal(models.VerifyExpired, vout.Status)
		s.True(vout.CodeIssued)

		rec, err := s.store.Get(ctx, testPhone)
		s.Require().NoError(err)
		s.Equal(0, rec.Attempts)
		s.Nil(rec.LockedUntil)
	})
}

// TestRefreshDuringExpiredLock reproduces the regenerate-while-lock-elapsed
// path: the refresh succeeds but leaves the stale lock marker, so the next
// verify recreates the record and reports expired.
func (s *OtpServiceSuite) TestRefreshDuringExpiredLock() {
	ctx := context.Background()
	phone := "79370000005"

	_, err := s.service.RequestCode(ctx, phone)
	s.Require().NoError(err)
	for range 3 {
		_, err = s.service.VerifyCode(ctx, phone, s.wrongCode(phone))
		s.Require().NoError(err)
	}
	s.advance(11 * time.Minute)

	out, err := s.service.RequestCode(ctx, phone)
	s.Require().NoError(err)
	s.Equal(models.RequestOK, out.Status)

	vout, err := s.service.VerifyCode(ctx, phone, s.currentCode(phone))
	s.Require().NoError(err)
	s.Equal(models.VerifyExpired, vout.Status)
}

func (s *OtpServiceSuite) TestVerifyCodeWithAuth() {
	ctx := context.Background()
	customerID := uuid.New()
	s.directory.byPhone[testPhone] = &Identity{CustomerID: customerID, MobilePhone: testPhone}

	s.Run("unknown phone reports identity not found without side effects", func() {
		out, err := s.service.VerifyCodeWithAuth(ctx, "70000000000", "123456")
		s.Require().NoError(err)
		s.Equal(models.VerifyIdentityNotFound, out.Status)

		rec, err := s.store.Get(ctx, "70000000000")
		s.NoError(err)
		s.Nil(rec, "no code is issued for unknown identities")
	})

	s.Run("success resolves customer id", func() {
		_, err := s.service.RequestCode(ctx, testPhone)
		s.Require().NoError(err)

		out, err := s.service.VerifyCodeWithAuth(ctx, testPhone, s.currentCode(testPhone))
		s.Require().NoError(err)
		s.Equal(models.VerifyOK, out.Status)
		s.Equal(customerID, out.CustomerID)
	})

	s.Run("wrong code still counts an attempt", func() {
		_, err := s.service.RequestCode(ctx, testPhone)
		s.Require().NoError(err)

		out, err := s.service.VerifyCodeWithAuth(ctx, testPhone, s.wrongCode(testPhone))
		s.Require().NoError(err)
		s.Equal(models.VerifyIncorrect, out.Status)
	})
}

func (s *OtpServiceSuite) TestPassportVariants() {
	ctx := context.Background()
	customerID := uuid.New()
	s.directory.byPassport["AB1234567"] = &Identity{CustomerID: customerID, MobilePhone: testPhone}

	s.Run("request by unknown passport reports not found", func() {
		out, err := s.service.RequestCodeByPassport(ctx, "XX0000000")
		s.Require().NoError(err)
		s.Equal(models.RequestNotFound, out.Status)
	})

	s.Run("request by passport issues code for the resolved phone", func() {
		out, err := s.service.RequestCodeByPassport(ctx, "AB1234567")
		s.Require().NoError(err)
		s.Equal(models.RequestOK, out.Status)

		rec, err := s.store.Get(ctx, testPhone)
		s.Require().NoError(err)
		s.NotNil(rec)
	})

	s.Run("verify by passport authenticates against the resolved phone", func() {
		out, err := s.service.VerifyCodeWithAuthByPassport(ctx, "AB1234567", s.currentCode(testPhone))
		s.Require().NoError(err)
		s.Equal(models.VerifyOK, out.Status)
		s.Equal(customerID, out.CustomerID)
	})

	s.Run("passport with empty phone reports identity not found", func() {
		s.directory.byPassport["CD7654321"] = &Identity{CustomerID: uuid.New()}
		out, err := s.service.VerifyCodeWithAuthByPassport(ctx, "CD7654321", "123456")
		s.Require().NoError(err)
		s.Equal(models.VerifyIdentityNotFound, out.Status)
	})
}

// TestAttemptsNeverDecrease drives mixed request/verify traffic and asserts
// the counter is monotonic until the record is consumed or recreated.
func (s *OtpServiceSuite) TestAttemptsNeverDecrease() {
	ctx := context.Background()
	phone := "79370000006"

	_, err := s.service.RequestCode(ctx, phone)
	s.Require().NoError(err)

	_, err = s.service.VerifyCode(ctx, phone, s.wrongCode(phone))
	s.Require().NoError(err)

	_, err = s.service.RequestCode(ctx, phone)
	s.Require().NoError(err)

	rec, err := s.store.Get(ctx, phone)
	s.Require().NoError(err)
	s.Equal(1, rec.Attempts)

	out, err := s.service.VerifyCode(ctx, phone, s.wrongCode(phone))
	s.Require().NoError(err)
	s.Equal(models.VerifyIncorrect, out.Status)
	s.Equal(1, out.AttemptsLeft, "refresh did not restore the attempt budget")
}
