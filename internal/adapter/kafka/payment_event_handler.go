package kafka

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/shopspring/decimal"
)

// PaymentEventHandler feeds chain-watcher transaction events into the same
// payment pipeline the webhook uses. Replays and already-settled orders are
// marked consumed, not retried.
type PaymentEventHandler struct {
	payments *usecase.ProcessPayment
	log      *slog.Logger
}

func NewPaymentEventHandler(payments *usecase.ProcessPayment, log *slog.Logger) *PaymentEventHandler {
	return &PaymentEventHandler{payments: payments, log: log}
}

func (h *PaymentEventHandler) Handle(ctx context.Context, ev usecase.ChainTxMsg) error {
	amount, err := decimal.NewFromString(ev.Amount)
	if err != nil {
		h.log.Error("bad amount in chain event", "tx_hash", ev.TxHash, "amount", ev.Amount)
		return nil // poison, do not retry
	}

	res, err := h.payments.Execute(ctx, usecase.PaymentNotice{
		OrderID:       ev.OrderID,
		TxHash:        ev.TxHash,
		Address:       ev.Address,
		Amount:        amount,
		Currency:      domain.Currency(ev.Currency),
		Confirmations: ev.Confirmations,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDuplicatePayment):
			h.log.Info("chain event replay", "tx_hash", ev.TxHash)
			return nil
		case errors.Is(err, usecase.ErrValidation), errors.Is(err, usecase.ErrNotFound):
			h.log.Error("chain event rejected", "tx_hash", ev.TxHash, "err", err)
			return nil
		default:
			return err
		}
	}

	h.log.Info("chain payment processed",
		"order_id", ev.OrderID, "tx_hash", ev.TxHash,
		"outcome", res.Outcome, "status", res.Status)
	return nil
}
