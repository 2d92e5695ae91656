package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JSONHandler adapts a typed event func onto the raw delivery stream. The
// order event schema travels as JSON on every queue this service binds.
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	var msg T
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("decode event from %s: %w", d.RoutingKey, err)
	}
	return h.HandleFunc(ctx, msg)
}
