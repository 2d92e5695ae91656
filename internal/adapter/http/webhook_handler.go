package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/logging"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var paymentOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_webhook_outcomes_total",
		Help: "Payment webhook classifications",
	},
	[]string{"outcome"},
)

type WebhookHandler struct {
	payments *usecase.ProcessPayment
}

func NewWebhookHandler(payments *usecase.ProcessPayment) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// paymentWebhookReq is the whitelisted body shape; unknown fields fail the
// decode.
type paymentWebhookReq struct {
	OrderID       string `json:"order_id"`
	TxHash        string `json:"tx_hash"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Address       string `json:"address"`
	Confirmations int    `json:"confirmations"`
}

// HandlePayment processes a signed payment notification. The signature was
// already verified against the raw body by the middleware.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	var req paymentWebhookReq
	if err := dec.Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	if req.OrderID == "" || req.TxHash == "" || req.Amount == "" || req.Currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_amount"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.payments.Execute(ctx, usecase.PaymentNotice{
		OrderID:       req.OrderID,
		TxHash:        req.TxHash,
		Address:       req.Address,
		Amount:        amount,
		Currency:      domain.Currency(req.Currency),
		Confirmations: req.Confirmations,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDuplicatePayment):
			// Replay: already credited, nothing to redo.
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate_transaction"})
		case errors.Is(err, usecase.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		case errors.Is(err, usecase.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		case errors.Is(err, usecase.ErrConcurrencyConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "conflict_retry"})
		default:
			logging.From(c).Error("webhook processing failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}

	paymentOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	c.JSON(http.StatusOK, gin.H{
		"outcome":  res.Outcome,
		"status":   res.Status,
		"credited": res.Credited.String(),
	})
}
