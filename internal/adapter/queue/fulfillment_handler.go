package queue

import (
	"context"
	"log/slog"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
)

// FulfillmentHandler consumes lifecycle events on the fulfillment queue and
// keeps the read cache warm. Paid physical orders are the ones a packer
// actually acts on; everything else is logged for the ops trail.
type FulfillmentHandler struct {
	cache usecase.OrderCache
	log   *slog.Logger
}

func NewFulfillmentHandler(cache usecase.OrderCache, log *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{cache: cache, log: log}
}

// HandleEvent is used with JSONHandler[usecase.OrderEventMsg].
func (h *FulfillmentHandler) HandleEvent(ctx context.Context, msg usecase.OrderEventMsg) error {
	if err := h.cache.SetStatus(ctx, msg.OrderID, string(msg.Status)); err != nil {
		return err
	}
	if domain.Status(msg.Status) == domain.StatusPaidAwaitingShipment && msg.Physical {
		h.log.Info("order ready for shipment",
			"order_id", msg.OrderID, "user_id", msg.UserID)
		return nil
	}
	h.log.Info("order event",
		"order_id", msg.OrderID, "status", msg.Status, "reason", msg.Reason)
	return nil
}
