package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"travel-platform/internal/settlement"
	"travel-platform/pkg/logger"
)

// Settler is the slice of the settlement engine the webhook needs.
type Settler interface {
	ConfirmPayment(ctx context.Context, bookingID, paymentID string) error
}

// WebhookHandler verifies the gateway signature and hands the confirmed
// payment to settlement. Verification failures are rejected before any
// state moves.
type WebhookHandler struct {
	Gateway *Gateway
	Settler Settler
}

func (h WebhookHandler) HandleConfirmation(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Gateway == nil || h.Settler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "payment webhook not configured"})
		return
	}

	var conf Confirmation
	if err := c.ShouldBindJSON(&conf); err != nil {
		log.Warn("payment webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.Gateway.Verify(conf); err != nil {
		log.Warn("payment webhook rejected",
			"order_id", conf.OrderID, "booking_id", conf.BookingID, "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
		return
	}

	if err := h.Settler.ConfirmPayment(c.Request.Context(), conf.BookingID, conf.PaymentID); err != nil {
		if errors.Is(err, settlement.ErrBookingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		log.Error("payment confirmation failed",
			"booking_id", conf.BookingID, "payment_id", conf.PaymentID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
