package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/billbuddy/utils"
	"go.uber.org/zap"
)

// BillBuddyBanner is the body of the service health endpoint
const BillBuddyBanner = "BillBuddy is running!"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is a dependency that can report its own health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PlanCounter reports how many plans are stored
type PlanCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        HealthChecker
	plans     PlanCounter
	providers []string
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when plans are
// kept in memory.
func NewHealthHandler(db HealthChecker, plans PlanCounter, providers []string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		plans:     plans,
		providers: providers,
		logger:    logger,
	}
}

// HandleBanner handles GET /api/billbuddy/health
func (h *HealthHandler) HandleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(BillBuddyBanner))
}

// HandleHealth handles GET /healthz
// Basic liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that the plan store answers
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		ready = false
	} else {
		checks["database"] = "healthy"
	}

	if h.plans != nil {
		if n, err := h.plans.Count(ctx); err != nil {
			h.logger.Warn("plan store health check failed", zap.Error(err))
			checks["plans"] = "unhealthy"
			ready = false
		} else if n == 0 {
			checks["plans"] = "empty"
		} else {
			checks["plans"] = "loaded"
		}
	}

	if len(h.providers) == 0 {
		checks["providers"] = "none_configured"
	} else {
		checks["providers"] = "configured"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
