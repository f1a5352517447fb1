package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/pesapal_api/internal/service"
	"github.com/GTDGit/pesapal_api/internal/utils"
)

// OrderHandler exposes the order ledger for diagnostics.
type OrderHandler struct {
	paymentService *service.PaymentService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(paymentService *service.PaymentService) *OrderHandler {
	return &OrderHandler{paymentService: paymentService}
}

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders := h.paymentService.Orders()
	utils.SuccessWithCount(c, 200, "Orders retrieved", orders, len(orders))
}

// GetOrder handles GET /orders/:trackingId
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.paymentService.Order(c.Param("trackingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, 200, "Order retrieved", order)
}
