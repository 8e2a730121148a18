package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a store the bot cannot run without
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names a store for the health report
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

// HealthHandler reports whether every backing store answers
type HealthHandler struct {
	checks []HealthCheck
	logger *slog.Logger
}

func NewHealthHandler(logger *slog.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// Health pings each store in turn and answers 503 naming the ones that failed
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	var failing []string
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", "store", check.Name, "error", err)
			failing = append(failing, check.Name)
		}
	}
	if len(failing) > 0 {
		RespondServiceUnavailable(c, "Unavailable: "+strings.Join(failing, ", "))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}
