package queue

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// FulfillmentQueue receives every lifecycle event for the ops/fulfillment
	// side.
	FulfillmentQueue = "shop.fulfillment.q"

	bindingKey = "order.*"
)

// RabbitProducer implements usecase.EventPublisher on a topic exchange.
type RabbitProducer struct {
	ch       *amqp.Channel
	exchange string
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch *amqp.Channel, exchange string) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		FulfillmentQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(
		q.Name,
		bindingKey,
		exchange,
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch, exchange: exchange}, nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)

// PublishOrderEvent routes the event by the status it announces:
// order.paid, order.shipped, order.cancelled.
func (p *RabbitProducer) PublishOrderEvent(ctx context.Context, msg usecase.OrderEventMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKeyFor(domain.Status(msg.Status)),
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

func routingKeyFor(s domain.Status) string {
	switch s {
	case domain.StatusPaid, domain.StatusPaidAwaitingShipment:
		return "order.paid"
	case domain.StatusShipped:
		return "order.shipped"
	case domain.StatusCancelledByUser, domain.StatusCancelledByAdmin, domain.StatusCancelledBySystem:
		return "order.cancelled"
	default:
		return "order.updated"
	}
}
