package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health
// Reports per-component status so operators can tell a dead database
// from a missing vendor key.
func (h *Handler) Health(c *gin.Context) {
	components := gin.H{}
	healthy := true

	if err := h.store.HealthCheck(c.Request.Context()); err != nil {
		components["storage"] = "error"
		healthy = false
	} else {
		components["storage"] = "ok"
	}

	if h.queue != nil && h.queue.IsConnected() {
		components["queue"] = "ok"
	} else {
		components["queue"] = "disconnected"
		healthy = false
	}

	if h.sheets != nil {
		components["sheets"] = "configured"
	} else {
		components["sheets"] = "not_configured"
	}

	if h.config.Gemini.APIKey != "" && !h.config.Gemini.Disabled {
		components["gemini"] = "configured"
	} else {
		components["gemini"] = "not_configured"
	}

	switch {
	case h.config.Email.SendGridAPIKey != "":
		components["email"] = "sendgrid"
	case h.config.Email.SMTPUser != "" && h.config.Email.SMTPPass != "":
		components["email"] = "smtp"
	default:
		components["email"] = "not_configured"
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"service":    h.config.App.Name,
		"version":    h.config.App.Version,
		"components": components,
	})
}
