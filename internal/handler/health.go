package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/lendingdesk/internal/infrastructure/redis"
	"github.com/yourorg/lendingdesk/pkg/database"
)

// HealthHandler answers liveness probes
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadinessHandler answers readiness probes by checking the dependencies the
// request path actually needs. Redis is optional and only degrades.
type ReadinessHandler struct {
	db     *database.ConnectionPool
	redis  *redis.Client
	logger *slog.Logger
}

// NewReadinessHandler creates a new readiness handler
func NewReadinessHandler(db *database.ConnectionPool, redisClient *redis.Client, logger *slog.Logger) *ReadinessHandler {
	return &ReadinessHandler{db: db, redis: redisClient, logger: logger}
}

func (h *ReadinessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := h.db.Health(ctx); err != nil {
		checks["database"] = "unavailable"
		ready = false
		h.logger.Warn("readiness check failed", slog.String("dependency", "database"), slog.String("error", err.Error()))
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "degraded"
			h.logger.Warn("readiness check degraded", slog.String("dependency", "redis"), slog.String("error", err.Error()))
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}
