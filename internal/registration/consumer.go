// Package registration covers the registration lifecycle: initiating a
// registration over HTTP, publishing the request for back-office review and
// applying the approval verdicts that come back over Kafka.
package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bankid/internal/platform/kafka/consumer"
	"bankid/internal/platform/metrics"
	"bankid/internal/registration/models"
)

// AccountManager applies an approval verdict to the customer account.
type AccountManager interface {
	CompleteNewAllowed(ctx context.Context, customerID uuid.UUID) error
	CompleteNewBlocked(ctx context.Context, customerID uuid.UUID) error
	CompleteExistingAllowed(ctx context.Context, customerID uuid.UUID) error
	CompleteExistingBlocked(ctx context.Context, customerID uuid.UUID) error
}

// ApprovalHandler consumes ApprovedRegistration events and dispatches them
// through the (flow, decision) matrix. Malformed events are logged and
// dropped; account mutation failures are returned so the message is
// redelivered.
type ApprovalHandler struct {
	manager AccountManager
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ApprovalHandlerOption configures an ApprovalHandler.
type ApprovalHandlerOption func(*ApprovalHandler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *slog.Logger) ApprovalHandlerOption {
	return func(h *ApprovalHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerMetrics sets the metrics sink.
func WithHandlerMetrics(m *metrics.Metrics) ApprovalHandlerOption {
	return func(h *ApprovalHandler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewApprovalHandler constructs the approvals consumer handler.
func NewApprovalHandler(manager AccountManager, opts ...ApprovalHandlerOption) (*ApprovalHandler, error) {
	if manager == nil {
		return nil, errors.New("account manager is required")
	}
	h := &ApprovalHandler{
		manager: manager,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

func (h *ApprovalHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var event models.ApprovedRegistration
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.drop(ctx, msg, "approval event is not valid JSON", err)
		return nil
	}
	if !event.Valid() {
		h.drop(ctx, msg, "approval event has unknown flow or decision", nil)
		return nil
	}

	if err := h.dispatch(ctx, event); err != nil {
		return fmt.Errorf("apply approval %s/%s for %s: %w",
			event.Flow, event.Decision, event.CustomerID, err)
	}

	if h.metrics != nil {
		h.metrics.ApprovalEvents.WithLabelValues(string(event.Flow), string(event.Decision)).Inc()
	}
	h.logger.InfoContext(ctx, "approval event applied",
		"customer_id", event.CustomerID, "flow", event.Flow, "decision", event.Decision)
	return nil
}

func (h *ApprovalHandler) dispatch(ctx context.Context, event models.ApprovedRegistration) error {
	switch event.Flow {
	case models.FlowNew:
		if event.Decision == models.DecisionAllowed {
			return h.manager.CompleteNewAllowed(ctx, event.CustomerID)
		}
		return h.manager.CompleteNewBlocked(ctx, event.CustomerID)
	default:
		if event.Decision == models.DecisionAllowed {
			return h.manager.CompleteExistingAllowed(ctx, event.CustomerID)
		}
		return h.manager.CompleteExistingBlocked(ctx, event.CustomerID)
	}
}

func (h *ApprovalHandler) drop(ctx context.Context, msg *consumer.Message, reason string, err error) {
	if h.metrics != nil {
		h.metrics.ApprovalEventsDropped.Inc()
	}
	attrs := []any{
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	h.logger.WarnContext(ctx, reason, attrs...)
}
