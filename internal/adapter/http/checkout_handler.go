package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CheckoutHandler struct {
	checkout *usecase.Checkout
}

func NewCheckoutHandler(checkout *usecase.Checkout) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type checkoutLineReq struct {
	ItemID    string `json:"itemId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice string `json:"unitPrice" binding:"required"`
	Physical  bool   `json:"physical"`
}

type checkoutReq struct {
	UserID          string            `json:"userId" binding:"required"`
	Lines           []checkoutLineReq `json:"lines" binding:"required,min=1"`
	ShippingCost    string            `json:"shippingCost"`
	Currency        string            `json:"currency"`
	UseBalance      bool              `json:"useBalance"`
	ShippingAddress string            `json:"shippingAddress"`
}

type checkoutResp struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	PaymentAddress string `json:"paymentAddress,omitempty"`
	AmountDue      string `json:"amountDue,omitempty"`
	Currency       string `json:"currency,omitempty"`
	ExpiresAt      string `json:"expiresAt"`
}

func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	in := usecase.CheckoutInput{
		UserID:          req.UserID,
		IdempotencyKey:  c.GetHeader("X-Idempotency-Key"),
		Currency:        domain.Currency(req.Currency),
		UseBalance:      req.UseBalance,
		ShippingAddress: req.ShippingAddress,
	}
	for _, l := range req.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_unit_price"})
			return
		}
		in.Lines = append(in.Lines, usecase.CartLine{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Physical:  l.Physical,
		})
	}
	if req.ShippingCost != "" {
		cost, err := decimal.NewFromString(req.ShippingCost)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_shipping_cost"})
			return
		}
		in.ShippingCost = cost
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := h.checkout.Execute(ctx, in)
	if err != nil {
		var short *usecase.ShortfallError
		switch {
		case errors.As(err, &short):
			// Reduced-quantity offer, not a bare failure.
			c.JSON(http.StatusConflict, gin.H{
				"error":     "stock_unavailable",
				"shortfall": short.Shortfall,
			})
		case errors.Is(err, usecase.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate_request"})
		case errors.Is(err, usecase.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}

	resp := checkoutResp{
		OrderID:   out.OrderID,
		Status:    string(out.Status),
		ExpiresAt: out.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if out.PaymentAddress != "" {
		resp.PaymentAddress = out.PaymentAddress
		resp.AmountDue = out.AmountDue.String()
		resp.Currency = string(out.Currency)
	}
	c.JSON(http.StatusCreated, resp)
}
