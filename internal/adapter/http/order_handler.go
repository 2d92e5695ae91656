package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	query  usecase.OrderRepo
	cache  usecase.OrderCache
	cancel *usecase.CancelOrder
}

func NewOrderHandler(query usecase.OrderRepo, cache usecase.OrderCache, cancel *usecase.CancelOrder) *OrderHandler {
	return &OrderHandler{query: query, cache: cache, cancel: cancel}
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// Status-only fast path for pollers.
	if c.Query("fields") == "status" {
		if status, err := h.cache.GetStatus(ctx, id); err == nil && status != "" {
			c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
			return
		}
	}

	o, err := h.query.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, usecase.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	lines := make([]gin.H, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, gin.H{
			"itemId":    l.ItemID,
			"quantity":  l.Quantity,
			"unitPrice": l.UnitPrice.String(),
			"physical":  l.Physical,
			"delivered": l.Delivered,
		})
	}
	resp := gin.H{
		"id":             o.ID,
		"userId":         o.UserID,
		"status":         o.Status,
		"totalPrice":     o.TotalPrice.String(),
		"balanceApplied": o.BalanceApplied.String(),
		"shippingCost":   o.ShippingCost.String(),
		"lines":          lines,
		"createdAt":      o.CreatedAt.UTC().Format(time.RFC3339),
		"expiresAt":      o.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if o.PaymentAddress != "" {
		resp["paymentAddress"] = o.PaymentAddress
		resp["currency"] = o.Crypto
	}
	if o.PaidAt != nil {
		resp["paidAt"] = o.PaidAt.UTC().Format(time.RFC3339)
	}
	if o.ShippedAt != nil {
		resp["shippedAt"] = o.ShippedAt.UTC().Format(time.RFC3339)
	}
	if o.CancelledAt != nil {
		resp["cancelledAt"] = o.CancelledAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

type cancelOrderReq struct {
	UserID string `json:"userId" binding:"required"`
}

// CancelOrder is the user-facing cancellation endpoint. Ownership is checked
// in the use case; a foreign order reads as not found.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := h.cancel.Execute(ctx, usecase.CancelInput{
		OrderID: c.Param("id"),
		Actor:   usecase.ActorUser,
		UserID:  req.UserID,
	})
	if err != nil {
		writeCancelError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResp(out))
}

func writeCancelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, usecase.ErrStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state"})
	case errors.Is(err, usecase.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict_retry"})
	case errors.Is(err, usecase.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func cancelResp(out usecase.CancelOutput) gin.H {
	return gin.H{
		"status": out.Status,
		"refund": gin.H{
			"nonRefundable": out.Refund.NonRefundable.String(),
			"base":          out.Refund.RefundableBase.String(),
			"penalty":       out.Refund.Penalty.String(),
			"credited":      out.Refund.FinalCredit.String(),
		},
	}
}
