package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proofbridge/internal/platform/metrics"
	"proofbridge/internal/platform/middleware"
)

// RequestTimeout bounds every API request. Proof polling runs outside requests.
const RequestTimeout = 30 * time.Second

// Routes is implemented by every handler mounted on the router.
type Routes interface {
	Register(r chi.Router)
}

// NewRouter wires the middleware stack, the API routes and /metrics.
// Health routes are mounted outside the timeout and content type checks so
// probes stay cheap.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer, health Routes, api ...Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))

	if health != nil {
		health.Register(r)
	}
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		for _, routes := range api {
			routes.Register(r)
		}
	})

	return r
}
