// Package health serves liveness, readiness and status probes. Status also
// reports which backend serves each store, since every backend may fall back
// to process memory, and how many flows are open.
package health

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"

	"proofbridge/pkg/platform/httputil"

	"github.com/go-chi/chi/v5"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc returns nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

// checkTimeout bounds each readiness check.
const checkTimeout = 2 * time.Second

// Backend kinds reported on /health.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendKafka    = "kafka"
	BackendMemory   = "memory"
	BackendNoop     = "noop"
)

// Handler provides health check endpoints.
type Handler struct {
	startTime   time.Time
	environment string
	now         func() time.Time

	mu        sync.RWMutex
	checks    map[string]CheckFunc
	backends  map[string]string
	openFlows func() int
}

// New creates a health handler.
func New(environment string) *Handler {
	return &Handler{
		startTime:   time.Now(),
		environment: environment,
		now:         time.Now,
		checks:      make(map[string]CheckFunc),
		backends:    make(map[string]string),
	}
}

// RegisterCheck adds a named readiness check.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetBackend records which backend serves a store, e.g. "state" -> "redis".
func (h *Handler) SetBackend(store, backend string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backends[store] = backend
}

// SetFlowCounter reports the number of open flows on /health.
func (h *Handler) SetFlowCounter(count func() int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openFlows = count
}

// Register mounts health check routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers 200 while the process runs.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// HandleReadiness runs every registered check concurrently and answers 503
// when any fails. With no backends configured the service is always ready.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, check := range checks {
		wg.Go(func() {
			result := h.run(r.Context(), check)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	response := ReadinessResponse{Status: "ready", Checks: results}
	for _, result := range results {
		if result.Status != "up" {
			response.Status = "not_ready"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	started := h.now()
	err := check(ctx)
	result := CheckResult{Status: "up", LatencyMS: h.now().Sub(started).Milliseconds()}
	if err != nil {
		result.Status = "down"
		result.Error = err.Error()
	}
	return result
}

type StatusResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Environment   string            `json:"environment"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Backends      map[string]string `json:"backends,omitempty"`
	OpenFlows     *int              `json:"open_flows,omitempty"`
	Timestamp     string            `json:"timestamp"`
}

// HandleStatus reports version, uptime, store backends and open flows.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	backends := maps.Clone(h.backends)
	count := h.openFlows
	h.mu.RUnlock()

	now := h.now()
	response := StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Backends:      backends,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
	if count != nil {
		n := count()
		response.OpenFlows = &n
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}
