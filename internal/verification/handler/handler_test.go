package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	jwttoken "bankid/internal/jwt_token"
	"bankid/internal/verification/models"
)

type stubService struct {
	requestOut *models.RequestOutcome
	verifyOut  *models.VerifyOutcome
}

func (s *stubService) RequestCode(context.Context, string) (*models.RequestOutcome, error) {
	return s.requestOut, nil
}

func (s *stubService) RequestCodeByPassport(context.Context, string) (*models.RequestOutcome, error) {
	return s.requestOut, nil
}

func (s *stubService) VerifyCode(context.Context, string, string) (*models.VerifyOutcome, error) {
	return s.verifyOut, nil
}

func (s *stubService) VerifyCodeWithAuth(context.Context, string, string) (*models.VerifyOutcome, error) {
	return s.verifyOut, nil
}

func (s *stubService) VerifyCodeWithAuthByPassport(context.Context, string, string) (*models.VerifyOutcome, error) {
	return s.verifyOut, nil
}

type VerificationHandlerSuite struct {
	suite.Suite
	service *stubService
	router  chi.Router
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) SetupTest() {
	s.service = &stubService{}
	tokens := jwttoken.NewJWTService("test-signing-key", "bankid", "bankid-clients")

	h, err := New(s.service, tokens, 15*time.Minute, slog.Default())
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *VerificationHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *VerificationHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *VerificationHandlerSuite) TestRequestCode() {
	s.Run("code sent", func() {
		s.service.requestOut = &models.RequestOutcome{Status: models.RequestOK}
		rec := s.do(http.MethodPost, "/verification/request", map[string]string{"mobilePhone": "79370000000"})
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("code_sent", s.decode(rec)["status"])
	})

	s.Run("locked phone gets retry hint", func() {
		s.service.requestOut = &models.RequestOutcome{Status: models.RequestLocked, RetryAfterSeconds: 600}
		rec := s.do(http.MethodPost, "/verification/request", map[string]string{"mobilePhone": "79370000000"})
		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal(float64(600), s.decode(rec)["retry_after"])
	})

	s.Run("invalid phone is rejected before the service", func() {
		rec := s.do(http.MethodPost, "/verification/request", map[string]string{"mobilePhone": "not-a-phone"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown passport is not found", func() {
		s.service.requestOut = &models.RequestOutcome{Status: models.RequestNotFound}
		rec := s.do(http.MethodPost, "/verification/request/passport", map[string]string{"passportNumber": "AB1234567"})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *VerificationHandlerSuite) TestVerifyCode() {
	body := map[string]string{"mobilePhone": "79370000000", "code": "123456"}

	s.Run("success", func() {
		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyOK}
		rec := s.do(http.MethodPost, "/verification/check", body)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("verified", s.decode(rec)["status"])
	})

	s.Run("incorrect code reports attempts left", func() {
		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyIncorrect, AttemptsLeft: 2}
		rec := s.do(http.MethodPost, "/verification/check", body)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal(float64(2), s.decode(rec)["attempts_left"])
	})

	s.Run("lockout", func() {
		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyLocked, RetryAfterSeconds: 360}
		rec := s.do(http.MethodPost, "/verification/check", body)
		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal(float64(360), s.decode(rec)["retry_after"])
	})

	s.Run("expired and missing codes are unprocessable", func() {
		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyExpired, CodeIssued: true}
		rec := s.do(http.MethodPost, "/verification/check", body)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)

		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyNotFound, CodeIssued: true}
		rec = s.do(http.MethodPost, "/verification/check", body)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *VerificationHandlerSuite) TestLogin() {
	body := map[string]string{"mobilePhone": "79370000000", "code": "123456"}

	s.Run("success returns customer id and bearer token", func() {
		customerID := uuid.New()
		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyOK, CustomerID: customerID}
		rec := s.do(http.MethodPost, "/auth/login", body)
		s.Equal(http.StatusOK, rec.Code)

		resp := s.decode(rec)
		s.Equal(customerID.String(), resp["customerId"])
		s.NotEmpty(resp["accessToken"])
		s.Equal("Bearer", resp["tokenType"])
		s.Equal(float64(900), resp["expiresIn"])
	})

	s.Run("unknown identity is not found", func() {
		s.service.verifyOut = &models.VerifyOutcome{Status: models.VerifyIdentityNotFound}
		rec := s.do(http.MethodPost, "/auth/login", body)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("passport login validates the passport format", func() {
		rec := s.do(http.MethodPost, "/auth/login/passport", map[string]string{"passportNumber": "!!", "code": "123456"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
