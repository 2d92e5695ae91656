package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler consumes one fulfillment delivery. Implementations must tolerate
// the same order event arriving more than once. Returning nil acks the
// delivery; an error nacks it, with requeue policy owned by the Router.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
