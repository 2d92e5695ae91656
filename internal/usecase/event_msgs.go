package usecase

import "time"

// OrderEventMsg goes out on the fulfillment exchange after a committed
// transition.
type OrderEventMsg struct {
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Physical   bool      `json:"physical"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ChainTxMsg is a confirmed-transaction event from the chain watcher on
// Kafka. Same shape of information as the webhook body; both feed
// ProcessPayment.
type ChainTxMsg struct {
	OrderID       string `json:"orderId"`
	TxHash        string `json:"txHash"`
	Address       string `json:"address"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Confirmations int    `json:"confirmations"`
}
