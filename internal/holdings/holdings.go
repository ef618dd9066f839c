// Package holdings probes the credit and deposit services to find out
// whether a customer holds at least one active product. Probes are bounded
// by a timeout and guarded by a circuit breaker; any failure degrades the
// answer to false so registration completion never blocks on a product
// service outage.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bankid/internal/platform/metrics"
	"bankid/pkg/platform/circuit"
)

// probe checks one product service for active products of a customer.
type probe struct {
	name    string
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Checker answers the active-holdings question by asking the credit service
// first and the deposit service only when credit came back empty.
type Checker struct {
	credit  *probe
	deposit *probe
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithHTTPClient replaces the probe HTTP client, keeping its timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.credit.client = client
			c.deposit.client = client
		}
	}
}

// New constructs a Checker probing the given credit and deposit base URLs.
func New(creditURL, depositURL string, timeout time.Duration, opts ...Option) (*Checker, error) {
	if creditURL == "" || depositURL == "" {
		return nil, errors.New("credit and deposit service URLs are required")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	c := &Checker{
		credit: &probe{
			name:    "credit",
			baseURL: creditURL,
			client:  client,
			breaker: circuit.New("credit"),
		},
		deposit: &probe{
			name:    "deposit",
			baseURL: depositURL,
			client:  client,
			breaker: circuit.New("deposit"),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.credit.logger = c.logger
	c.deposit.logger = c.logger
	return c, nil
}

// HasActiveHoldings reports whether the customer has an active credit or
// deposit product. Probe errors, non-200 answers and open circuits all
// count as no holdings.
func (c *Checker) HasActiveHoldings(ctx context.Context, customerID uuid.UUID) (bool, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.HoldingsCheckDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if c.credit.hasProduct(ctx, customerID) {
		return true, nil
	}
	return c.deposit.hasProduct(ctx, customerID), nil
}

func (p *probe) hasProduct(ctx context.Context, customerID uuid.UUID) bool {
	if !p.breaker.Allow() {
		// Circuit open and still cooling down; skip the call entirely.
		return false
	}

	url := fmt.Sprintf("%s/clients/%s/active-products", p.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.ErrorContext(ctx, "holdings probe request build failed",
			"service", p.name, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.logger.WarnContext(ctx, "holdings probe circuit opened", "service", p.name)
		}
		p.logger.WarnContext(ctx, "holdings probe failed",
			"service", p.name, "customer_id", customerID, "error", err)
		return false
	}
	defer resp.Body.Close()

	_, change := p.breaker.RecordSuccess()
	if change.Closed {
		p.logger.InfoContext(ctx, "holdings probe circuit closed", "service", p.name)
	}
	return resp.StatusCode == http.StatusOK
}
