// Package httptransport assembles the HTTP surface: verification and
// registration routes behind the shared middleware stack, plus the metrics
// and health endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bankid/internal/platform/middleware"
)

// Registrar mounts a route group on the router. Both feature handlers
// implement it.
type Registrar interface {
	Register(r chi.Router)
}

// Options carries the router dependencies.
type Options struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Handlers       []Registrar
}

// NewRouter builds the chi router with the shared middleware stack applied
// to the API routes. /healthz and /metrics stay outside the stack so probes
// and scrapes are cheap and unlogged.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.Recovery(opts.Logger))
		api.Use(middleware.RequestID)
		api.Use(middleware.Logger(opts.Logger))
		api.Use(middleware.Timeout(opts.RequestTimeout))
		api.Use(middleware.ContentTypeJSON)
		for _, h := range opts.Handlers {
			h.Register(api)
		}
	})

	return r
}
