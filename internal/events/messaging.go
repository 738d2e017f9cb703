package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "pos.events"

	BillCreatedRoutingKey       = "bill.created.v1"
	StockDepletedRoutingKey     = "stock.depleted.v1"
	SessionConsumedRoutingKey   = "payment.session.consumed.v1"
	CheckoutCompletedRoutingKey = "payment.checkout.completed.v1"

	posServiceName = "pos-service"
)

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

func posQueueName(routingKey string) string {
	return serviceQueue(posServiceName, routingKey)
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func DialRabbit(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}
