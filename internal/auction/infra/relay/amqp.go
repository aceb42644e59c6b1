package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"bidhaus/internal/auction/domain"
	"bidhaus/internal/shared/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const exchangeName = "auction.events"

// envelope wraps a room event with its origin so an instance can skip
// events it published itself.
type envelope struct {
	Origin string           `json:"origin"`
	Event  domain.RoomEvent `json:"event"`
}

// AMQPRelay distributes room events between horizontally-scaled server
// instances over a RabbitMQ topic exchange keyed by auction ID. It is
// pluggable transport behind the broadcast gateway, not part of the
// actor's own logic.
type AMQPRelay struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	origin  string
	inbound chan domain.RoomEvent
}

func Dial(url string) (*AMQPRelay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("relay: failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay: failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay: failed to declare exchange %s: %w", exchangeName, err)
	}
	return &AMQPRelay{
		conn:    conn,
		ch:      ch,
		origin:  uuid.NewString(),
		inbound: make(chan domain.RoomEvent, 256),
	}, nil
}

// Publish sends one room event to the exchange, routed by auction ID.
func (r *AMQPRelay) Publish(event domain.RoomEvent) error {
	body, err := json.Marshal(envelope{Origin: r.origin, Event: event})
	if err != nil {
		return fmt.Errorf("relay: failed to marshal event: %w", err)
	}
	err = r.ch.Publish(
		exchangeName,
		event.AuctionID.String(),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("relay: failed to publish to exchange %s: %w", exchangeName, err)
	}
	return nil
}

// Events returns the stream of room events published by peer instances.
func (r *AMQPRelay) Events() <-chan domain.RoomEvent {
	return r.inbound
}

// Run binds an exclusive queue to the exchange and pumps peer events into
// the inbound channel until ctx is cancelled.
func (r *AMQPRelay) Run(ctx context.Context) error {
	q, err := r.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("relay: failed to declare queue: %w", err)
	}
	if err := r.ch.QueueBind(q.Name, "#", exchangeName, false, nil); err != nil {
		return fmt.Errorf("relay: failed to bind queue: %w", err)
	}
	deliveries, err := r.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("relay: failed to consume: %w", err)
	}

	log.Info("Relay consuming peer events", zap.String("origin", r.origin))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				log.Warn("Relay dropped malformed event", zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			select {
			case r.inbound <- env.Event:
			default:
				log.Warn("Relay inbound channel full, dropping peer event",
					zap.String("auctionID", env.Event.AuctionID.String()),
				)
			}
		}
	}
}

func (r *AMQPRelay) Close() {
	_ = r.ch.Close()
	_ = r.conn.Close()
}
