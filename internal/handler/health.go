package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readinessTimeout bounds the dependency checks of a single probe.
const readinessTimeout = 5 * time.Second

// Probe results reported per dependency.
const (
	checkOK            = "ok"
	checkFailed        = "error"
	checkNotConfigured = "not configured"
)

// HealthChecker is implemented by the note store and the Redis cache.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name    string
	checker HealthChecker
	// required dependencies make the instance unready when they fail.
	required bool
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	deps   []dependency
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. db is required. cache may be nil
// when Redis is not configured; a failing cache only degrades the instance
// because rate limiting and revocation checks fail open.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps: []dependency{
			{name: "database", checker: db, required: true},
			{name: "redis", checker: cache},
		},
		logger: logger,
	}
}

// HealthResponse is the body of every probe. Status is ok, degraded or unhealthy.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency concurrently. Failure details go to the log
// only, since the endpoint is unauthenticated.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make([]string, len(h.deps))
	var wg sync.WaitGroup
	for i, dep := range h.deps {
		if dep.checker == nil {
			results[i] = checkNotConfigured
			continue
		}
		wg.Add(1)
		go func(i int, dep dependency) {
			defer wg.Done()
			if err := dep.checker.Ping(ctx); err != nil {
				h.logger.Warn("readiness_check_failed",
					slog.String("dependency", dep.name),
					slog.String("error", err.Error()),
				)
				results[i] = checkFailed
				return
			}
			results[i] = checkOK
		}(i, dep)
	}
	wg.Wait()

	response := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	statusCode := http.StatusOK
	for i, dep := range h.deps {
		result := results[i]
		response.Checks[dep.name] = result
		switch {
		case dep.required && result != checkOK:
			response.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		case !dep.required && result == checkFailed && response.Status == "ok":
			response.Status = "degraded"
		}
	}

	writeJSON(w, statusCode, response)
}

// Health reports the same checks as Readyz under the conventional path.
//
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.Readyz(w, r)
}
