package api

import (
	"net/http"

	"storefront/internal/payment"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), identity(c).ID, c.GetHeader(idempotencyHeader), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "order created", resp)
}

func (h *Handler) getMyOrders(c *gin.Context) {
	orders, err := h.orders.GetMyOrders(c.Request.Context(), identity(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", orders)
}

// paymentCallback receives gateway notifications. Unmatched orders are
// acknowledged so the gateway stops retrying.
func (h *Handler) paymentCallback(c *gin.Context) {
	var n payment.Notification
	if !h.bindJSON(c, &n) {
		return
	}

	if err := h.orders.PaymentCallback(c.Request.Context(), &n); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true})
}
