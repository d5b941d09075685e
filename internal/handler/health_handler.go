package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether one dependency can serve requests.
type ReadinessCheck struct {
	Name string
	// Required checks make the service unready when they fail. Optional ones
	// are reported only.
	Required bool
	Check    func() error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks []ReadinessCheck
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	status := http.StatusOK
	details := make(gin.H, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Check(); err != nil {
			details[chk.Name] = err.Error()
			if chk.Required {
				status = http.StatusServiceUnavailable
			}
			continue
		}
		details[chk.Name] = "ok"
	}

	if status != http.StatusOK {
		c.JSON(status, gin.H{"status": "unavailable", "checks": details})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": details})
}
