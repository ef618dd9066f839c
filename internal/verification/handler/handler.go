// Package handler exposes the verification operations over HTTP and
// translates engine outcomes to response codes: lockouts are 403 with a
// retry hint, wrong codes are 400, missing or expired codes are 422.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"bankid/internal/verification/models"
	dErrors "bankid/pkg/domain-errors"
	"bankid/pkg/platform/httputil"
)

// Service is the verification engine surface the handler needs.
type Service interface {
	RequestCode(ctx context.Context, mobilePhone string) (*models.RequestOutcome, error)
	RequestCodeByPassport(ctx context.Context, passportNumber string) (*models.RequestOutcome, error)
	VerifyCode(ctx context.Context, mobilePhone, code string) (*models.VerifyOutcome, error)
	VerifyCodeWithAuth(ctx context.Context, mobilePhone, code string) (*models.VerifyOutcome, error)
	VerifyCodeWithAuthByPassport(ctx context.Context, passportNumber, code string) (*models.VerifyOutcome, error)
}

// TokenIssuer signs access tokens for authenticated customers.
type TokenIssuer interface {
	GenerateAccessToken(customerID uuid.UUID, expiresIn time.Duration) (string, error)
}

// Handler handles verification and login endpoints.
type Handler struct {
	service  Service
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates a verification Handler. The token issuer is optional; without
// it login responses carry only the customer id.
func New(service Service, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("verification service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger,
		validate: validator.New(),
	}, nil
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification/request", h.handleRequestCode)
	r.Post("/verification/request/passport", h.handleRequestCodeByPassport)
	r.Post("/verification/check", h.handleVerifyCode)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/login/passport", h.handleLoginByPassport)
}

type requestCodeRequest struct {
	MobilePhone string `json:"mobilePhone" validate:"required,numeric,len=11"`
}

type requestCodeByPassportRequest struct {
	PassportNumber string `json:"passportNumber" validate:"required,alphanum,min=6,max=12"`
}

type verifyCodeRequest struct {
	MobilePhone string `json:"mobilePhone" validate:"required,numeric,len=11"`
	Code        string `json:"code" validate:"required,numeric,len=6"`
}

type loginByPassportRequest struct {
	PassportNumber string `json:"passportNumber" validate:"required,alphanum,min=6,max=12"`
	Code           string `json:"code" validate:"required,numeric,len=6"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type loginResponse struct {
	CustomerID  string `json:"customerId"`
	AccessToken string `json:"accessToken,omitempty"`
	TokenType   string `json:"tokenType,omitempty"`
	ExpiresIn   int    `json:"expiresIn,omitempty"`
}

func (h *Handler) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.service.RequestCode(ctx, req.MobilePhone)
	if err != nil {
		h.logger.ErrorContext(ctx, "request code failed", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "request code failed"))
		return
	}
	h.writeRequestOutcome(w, out)
}

func (h *Handler) handleRequestCodeByPassport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestCodeByPassportRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.service.RequestCodeByPassport(ctx, req.PassportNumber)
	if err != nil {
		h.logger.ErrorContext(ctx, "request code by passport failed", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "request code failed"))
		return
	}
	h.writeRequestOutcome(w, out)
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.service.VerifyCode(ctx, req.MobilePhone, req.Code)
	if err != nil {
		h.logger.ErrorContext(ctx, "verify code failed", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "verify code failed"))
		return
	}
	if out.Status != models.VerifyOK {
		h.writeVerifyFailure(w, out)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "verified"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.service.VerifyCodeWithAuth(ctx, req.MobilePhone, req.Code)
	if err != nil {
		h.logger.ErrorContext(ctx, "login failed", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "login failed"))
		return
	}
	h.writeLoginOutcome(ctx, w, out)
}

func (h *Handler) handleLoginByPassport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginByPassportRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.service.VerifyCodeWithAuthByPassport(ctx, req.PassportNumber, req.Code)
	if err != nil {
		h.logger.ErrorContext(ctx, "login by passport failed", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "login failed"))
		return
	}
	h.writeLoginOutcome(ctx, w, out)
}

func (h *Handler) writeLoginOutcome(ctx context.Context, w http.ResponseWriter, out *models.VerifyOutcome) {
	if out.Status != models.VerifyOK {
		h.writeVerifyFailure(w, out)
		return
	}

	resp := loginResponse{CustomerID: out.CustomerID.String()}
	if h.tokens != nil {
		token, err := h.tokens.GenerateAccessToken(out.CustomerID, h.tokenTTL)
		if err != nil {
			h.logger.ErrorContext(ctx, "access token generation failed", "error", err)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "login failed"))
			return
		}
		resp.AccessToken = token
		resp.TokenType = "Bearer"
		resp.ExpiresIn = int(h.tokenTTL.Seconds())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeRequestOutcome(w http.ResponseWriter, out *models.RequestOutcome) {
	switch out.Status {
	case models.RequestOK:
		httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "code_sent"})
	case models.RequestLocked:
		httputil.WriteRetryAfter(w, dErrors.CodeForbidden, "verification is locked", out.RetryAfterSeconds)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no customer for this passport"))
	}
}

func (h *Handler) writeVerifyFailure(w http.ResponseWriter, out *models.VerifyOutcome) {
	switch out.Status {
	case models.VerifyLocked:
		httputil.WriteRetryAfter(w, dErrors.CodeForbidden, "verification is locked", out.RetryAfterSeconds)
	case models.VerifyIncorrect:
		httputil.WriteJSON(w, http.StatusBadRequest, verifyFailureBody{
			Error:            "incorrect_code",
			ErrorDescription: "verification code does not match",
			AttemptsLeft:     out.AttemptsLeft,
		})
	case models.VerifyExpired:
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnprocessable, "verification code expired, a new code was sent"))
	case models.VerifyNotFound:
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnprocessable, "no active verification, a new code was sent"))
	case models.VerifyIdentityNotFound:
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no customer for this identity"))
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "unexpected verification outcome"))
	}
}

type verifyFailureBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	AttemptsLeft     int    `json:"attempts_left"`
}

// decode parses and validates the JSON request body. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request fields"))
		return false
	}
	return true
}
