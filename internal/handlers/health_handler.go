package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/utils"
)

// HealthChecker is satisfied by the service manager
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	BaseHandler
	checker HealthChecker
}

func NewHealthHandler(checker HealthChecker, logger utils.Logger) *HealthHandler {
	return &HealthHandler{
		BaseHandler: NewBaseHandler(logger),
		checker:     checker,
	}
}

// Health reports backend connectivity; the dashboards show it as the connection indicator
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.checker.HealthCheck(ctx); err != nil {
		h.LogError(c, err, "Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "degraded",
			"connection": "Disconnected",
			"service":    "clinic-service",
			"error":      err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"connection": "Connected",
		"service":    "clinic-service",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
