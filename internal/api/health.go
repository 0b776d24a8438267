package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vision-assist/backend/pkg/health"
)

// HealthHandler reports the periodic component checks
type HealthHandler struct {
	checker *health.Checker
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, version: version}
}

// RegisterRoutes registers health check related routes
func (h *HealthHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
}

// Health answers 503 while a critical component is down
func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if !h.checker.IsSystemHealthy() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"version":    h.version,
		"timestamp":  time.Now().UTC(),
		"components": h.checker.GetStatus(),
	})
}
