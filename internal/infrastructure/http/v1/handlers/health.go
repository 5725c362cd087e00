package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"workshop/internal/infrastructure/storage/postgres"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool    *pgxpool.Pool
	redis   redis.UniversalClient
	version string
}

// NewHealthHandler creates a new health handler. rdb may be nil when the
// price cache is disabled.
func NewHealthHandler(pool *pgxpool.Pool, rdb redis.UniversalClient, version string) *HealthHandler {
	return &HealthHandler{pool: pool, redis: rdb, version: version}
}

// Live reports whether the process is alive.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready reports whether the service can accept traffic.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			// the price cache falls back to the database
			checks["redis"] = "degraded: " + err.Error()
		} else {
			checks["redis"] = "healthy"
		}
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "error", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "workshop",
		"version": h.version,
	}
	if h.pool != nil {
		stat := postgres.GetPoolStats(h.pool)
		info["database"] = map[string]any{
			"total_conns":      stat.TotalConns,
			"acquired_conns":   stat.AcquiredConns,
			"idle_conns":       stat.IdleConns,
			"max_conns":        stat.MaxConns,
			"acquire_count":    stat.AcquireCount,
			"acquire_duration": stat.AcquireDuration.String(),
		}
	}
	c.JSON(http.StatusOK, info)
}
