package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	custmodels "bankid/internal/customer/models"
	dErrors "bankid/pkg/domain-errors"
	"bankid/pkg/platform/httputil"
)

// Service is the registration surface the handler needs.
type Service interface {
	Register(ctx context.Context, mobilePhone, email string) (*custmodels.Customer, error)
	CompleteProfile(ctx context.Context, mobilePhone, passportNumber string) (*custmodels.Customer, error)
	Status(ctx context.Context, mobilePhone string) (custmodels.Status, error)
}

// Handler handles registration endpoints.
type Handler struct {
	service  Service
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates a registration Handler.
func New(service Service, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("registration service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}, nil
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registration", h.handleRegister)
	r.Put("/registration", h.handleCompleteProfile)
	r.Get("/registration", h.handleStatus)
}

type registerRequest struct {
	MobilePhone string `json:"mobilePhone" validate:"required,numeric,len=11"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type completeProfileRequest struct {
	MobilePhone    string `json:"mobilePhone" validate:"required,numeric,len=11"`
	PassportNumber string `json:"passportNumber" validate:"required,alphanum,min=6,max=12"`
}

type customerResponse struct {
	CustomerID string `json:"customerId"`
	Status     string `json:"status"`
}

type statusResponse struct {
	MobilePhone string `json:"mobilePhone"`
	Status      string `json:"status"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	customer, err := h.service.Register(ctx, req.MobilePhone, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, "registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, customerResponse{
		CustomerID: customer.ID.String(),
		Status:     string(customer.Status),
	})
}

func (h *Handler) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	customer, err := h.service.CompleteProfile(ctx, req.MobilePhone, req.PassportNumber)
	if err != nil {
		h.writeServiceError(ctx, w, "profile completion failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, customerResponse{
		CustomerID: customer.ID.String(),
		Status:     string(customer.Status),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mobilePhone := r.URL.Query().Get("mobilePhone")
	if err := h.validate.Var(mobilePhone, "required,numeric,len=11"); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid mobilePhone parameter"))
		return
	}

	status, err := h.service.Status(ctx, mobilePhone)
	if err != nil {
		h.writeServiceError(ctx, w, "status lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		MobilePhone: mobilePhone,
		Status:      string(status),
	})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "error", err)
	}
	httputil.WriteError(w, err)
}

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
