package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
)

// HandlerFunc processes one delivery. Returning an error NACKs the message
// without requeue.
type HandlerFunc func(ctx context.Context, body []byte) error

type SessionConfirmer interface {
	ConfirmSession(ctx context.Context, sessionID string) (payment.ConfirmResult, error)
}

// CheckoutCompletedHandler confirms the session named by a relayed gateway
// webhook. Both enveloped and bare {"session_id": ...} bodies are accepted.
// Enveloped events carrying a sequence are checked against checkpoints, which
// may be nil.
func CheckoutCompletedHandler(confirmer SessionConfirmer, checkpoints dedup.Checkpointer, logger *zap.Logger) HandlerFunc {
	consumer := posQueueName(CheckoutCompletedRoutingKey)

	return func(ctx context.Context, body []byte) error {
		payload, env, err := parseCheckoutCompleted(body)
		if err != nil {
			return err
		}

		log := logger.With(zap.String("session_id", payload.SessionID))
		tracked := env != nil && env.Sequence > 0 && checkpoints != nil
		if env != nil {
			log = log.With(zap.String("event_id", env.EventID), zap.String("correlation_id", env.CorrelationID))
		}

		if tracked {
			last, ok, err := checkpoints.GetLastSequence(ctx, consumer, env.PartitionKey)
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}
			if ok && env.Sequence <= last {
				log.Info("skipping already processed event",
					zap.Int64("sequence", env.Sequence), zap.Int64("checkpoint", last))
				return nil
			}
		}

		res, err := confirmer.ConfirmSession(logging.ContextWithLogger(ctx, log), payload.SessionID)
		if err != nil {
			return fmt.Errorf("confirm session %s: %w", payload.SessionID, err)
		}

		if tracked {
			if err := checkpoints.UpsertLastSequence(ctx, consumer, env.PartitionKey, env.Sequence); err != nil {
				// The session is already consumed; a replay only re-confirms it.
				log.Warn("advance checkpoint failed", zap.Error(err))
			}
		}
		log.Info("checkout completed", zap.Bool("already_consumed", res.AlreadyConsumed))
		return nil
	}
}

func parseCheckoutCompleted(body []byte) (CheckoutCompletedPayload, *EventEnvelope, error) {
	var payload CheckoutCompletedPayload

	env, err := parseEnvelope(body)
	if err != nil {
		return payload, nil, fmt.Errorf("unmarshal: %w", err)
	}

	if env.EventName == "" {
		if err := json.Unmarshal(body, &payload); err != nil {
			return payload, nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	} else {
		if err := env.Validate(EventTypeCheckoutCompleted, 1); err != nil {
			return payload, nil, err
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return payload, nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	if payload.SessionID == "" {
		return payload, nil, fmt.Errorf("missing session_id")
	}
	if env.EventName == "" {
		return payload, nil, nil
	}
	return payload, &env, nil
}

// StartCheckoutCompletedConsumer binds the service queue to the webhook relay
// routing key and processes deliveries until ctx is done. The returned func
// closes the channel.
func StartCheckoutCompletedConsumer(ctx context.Context, conn *amqp.Connection, confirmer SessionConfirmer, checkpoints dedup.Checkpointer, logger *zap.Logger) (func() error, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	queue := posQueueName(CheckoutCompletedRoutingKey)
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue, CheckoutCompletedRoutingKey, EventsExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Qos(8, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		posServiceName, // consumer tag
		false,          // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}

	handle := CheckoutCompletedHandler(confirmer, checkpoints, logger)
	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("stopping consumer", zap.String("queue", queue))
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("messages channel closed", zap.String("queue", queue))
					return
				}

				if err := handle(ctx, msg.Body); err != nil {
					logger.Error("handle message", zap.String("queue", queue), zap.Error(err))
					_ = msg.Nack(false, false)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	return ch.Close, nil
}
