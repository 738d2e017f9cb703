package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/billing"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/sequence"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       amqpChannel
	seq      sequence.Sequencer
	producer string
	now      func() time.Time
}

type PublisherOptions struct {
	Producer string
}

func NewPublisher(conn *amqp.Connection, seq sequence.Sequencer, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq, opts), nil
}

func newPublisher(ch amqpChannel, seq sequence.Sequencer, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = posServiceName
	}
	return &Publisher{
		ch:       ch,
		seq:      seq,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishBillCreated(ctx context.Context, b billing.Bill) error {
	payload := BillCreatedPayload{
		BillID:     b.ID,
		MerchantID: b.MerchantID,
		Total:      b.Total,
		Timestamp:  b.CreatedAt,
	}
	for _, it := range b.Items {
		payload.Items = append(payload.Items, BillLine{ProductID: it.ProductID, Quantity: it.Qty, Price: it.Price})
	}

	meta := p.meta(ctx, b.MerchantID, b.ID)
	return p.publish(ctx, BillCreatedRoutingKey, EventTypeBillCreated, billCreatedSchema, meta, payload)
}

func (p *Publisher) PublishStockDepleted(ctx context.Context, merchantID, productID string) error {
	payload := StockDepletedPayload{
		MerchantID: merchantID,
		ProductID:  productID,
		Timestamp:  p.now(),
	}
	meta := p.meta(ctx, merchantID, "")
	return p.publish(ctx, StockDepletedRoutingKey, EventTypeStockDepleted, stockDepletedSchema, meta, payload)
}

func (p *Publisher) PublishSessionConsumed(ctx context.Context, s payment.Session, remaining int) error {
	payload := SessionConsumedPayload{
		SessionID:  s.ID,
		MerchantID: s.OwnerID,
		ProductID:  s.ProductID,
		Quantity:   s.Quantity,
		Remaining:  remaining,
		Timestamp:  p.now(),
	}
	meta := p.meta(ctx, s.OwnerID, s.ID)
	return p.publish(ctx, SessionConsumedRoutingKey, EventTypeSessionConsumed, sessionConsumedSchema, meta, payload)
}

// meta partitions by merchant and correlates with the HTTP request id when
// there is one.
func (p *Publisher) meta(ctx context.Context, merchantID, causationID string) EventMeta {
	return EventMeta{
		CorrelationID: middleware.GetReqID(ctx),
		CausationID:   causationID,
		PartitionKey:  merchantID,
	}
}

func (p *Publisher) publish(ctx context.Context, routingKey, name, schema string, meta EventMeta, payload any) error {
	seq, err := p.seq.NextSequence(ctx, meta.PartitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env, err := newEnvelope(name, schema, meta, seq, p.producer, payload, p.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", name, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID,
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishBillCreated(context.Context, billing.Bill) error { return nil }

func (NopPublisher) PublishStockDepleted(context.Context, string, string) error { return nil }

func (NopPublisher) PublishSessionConsumed(context.Context, payment.Session, int) error { return nil }
