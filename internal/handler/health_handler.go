package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/pesapal_api/internal/service"
	"github.com/GTDGit/pesapal_api/internal/sse"
	"github.com/GTDGit/pesapal_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides health endpoint.
type HealthHandler struct {
	paymentService *service.PaymentService
	hub            *sse.Hub
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(paymentService *service.PaymentService, hub *sse.Hub) *HealthHandler {
	return &HealthHandler{paymentService: paymentService, hub: hub}
}

// GetHealth reports liveness and which gateway environments are configured.
// It does not call the gateway.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	streamClients := 0
	if h.hub != nil {
		streamClients = h.hub.ClientCount()
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":        "healthy",
		"version":       "1.0.0",
		"uptime":        int(time.Since(startTime).Seconds()),
		"environments":  h.paymentService.Environments(),
		"orders":        len(h.paymentService.Orders()),
		"streamClients": streamClients,
	})
}
