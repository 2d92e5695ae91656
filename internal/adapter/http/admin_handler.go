package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	ship   *usecase.MarkShipped
	cancel *usecase.CancelOrder
}

func NewAdminHandler(ship *usecase.MarkShipped, cancel *usecase.CancelOrder) *AdminHandler {
	return &AdminHandler{ship: ship, cancel: cancel}
}

func (h *AdminHandler) ShipOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := h.ship.Execute(ctx, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, usecase.ErrStateTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_state"})
		case errors.Is(err, usecase.ErrConcurrencyConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "conflict_retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type adminCancelReq struct {
	Note string `json:"note"`
}

// AdminCancel cancels without penalty regardless of the grace window.
func (h *AdminHandler) AdminCancel(c *gin.Context) {
	var req adminCancelReq
	_ = c.ShouldBindJSON(&req) // note is optional

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := h.cancel.Execute(ctx, usecase.CancelInput{
		OrderID: c.Param("id"),
		Actor:   usecase.ActorAdmin,
		Note:    req.Note,
	})
	if err != nil {
		writeCancelError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResp(out))
}
