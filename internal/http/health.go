package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthCheck names one dependency checked by /health. A nil Target is
// reported as not configured and does not fail the check.
type HealthCheck struct {
	Name   string
	Target Pinger
}

type HealthController struct {
	checks  []HealthCheck
	version string
	started time.Time
}

func NewHealthController(version string, checks ...HealthCheck) *HealthController {
	return &HealthController{
		checks:  checks,
		version: version,
		started: time.Now(),
	}
}

// Status pings every dependency and answers 503 if any of them fails.
func (h *HealthController) Status(c *gin.Context) {
	ctx := c.Request.Context()
	healthy := true
	results := make(map[string]string, len(h.checks))

	for _, check := range h.checks {
		if check.Target == nil {
			results[check.Name] = "not configured"
			continue
		}
		if err := check.Target.Ping(ctx); err != nil {
			results[check.Name] = "error: " + err.Error()
			healthy = false
		} else {
			results[check.Name] = "ok"
		}
	}

	response := HealthResponse{
		Status:  "healthy",
		Time:    time.Now().Format(time.RFC3339),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
		Checks:  results,
	}
	code := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.IndentedJSON(code, response)
}

// Ping is a liveness check that never touches the database.
func (h *HealthController) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
