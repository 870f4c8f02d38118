package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/ground-booking/internal/application"
)

// RoutingKeyPaymentPaid is the routing key of successful payment messages.
const RoutingKeyPaymentPaid = "payment.paid"

// ErrDeliveriesClosed reports that the broker closed the delivery stream while
// the consumer was still meant to run.
var ErrDeliveriesClosed = errors.New("payment deliveries closed by broker")

// consumeChannel is the part of *amqp.Channel the consumer drives.
type consumeChannel interface {
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// BookingConfirmer confirms a pending booking.
type BookingConfirmer interface {
	Confirm(ctx context.Context, bookingID string) (application.Booking, error)
}

// PaymentPaid is the payload of a payment.paid message.
type PaymentPaid struct {
	BookingID string `json:"booking_id"`
	ChargeID  string `json:"charge_id,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// ConsumerConfig configures PaymentConsumer.
type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

// PaymentConsumer confirms bookings when their payment succeeds.
type PaymentConsumer struct {
	cfg       ConsumerConfig
	confirmer BookingConfirmer
	logger    *slog.Logger

	conn *amqp.Connection
	ch   consumeChannel
}

func NewPaymentConsumer(cfg ConsumerConfig, confirmer BookingConfirmer, logger *slog.Logger) *PaymentConsumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentConsumer{
		cfg:       cfg,
		confirmer: confirmer,
		logger:    logger.With("component", "payment_consumer"),
	}
}

// Connect declares the exchange and a durable queue bound to payment.paid.
func (c *PaymentConsumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbit dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel failed: %w", err)
	}

	fail := func(format string, err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf(format, err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange failed: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue failed: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyPaymentPaid, c.cfg.Exchange, false, nil); err != nil {
		return fail("bind queue failed: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail("set qos failed: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// Run consumes deliveries until ctx is done. A delivery stream closed by the
// broker is returned as ErrDeliveriesClosed so the process does not keep
// serving without payment confirmations.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	if c.ch == nil {
		return errors.New("payment consumer is not connected")
	}
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "ground-booking", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("delivery channel closed", "queue", c.cfg.Queue)
				return ErrDeliveriesClosed
			}
			c.settle(ctx, d)
		}
	}
}

func (c *PaymentConsumer) settle(ctx context.Context, d amqp.Delivery) {
	var err error
	switch c.handle(ctx, d.RoutingKey, d.Body) {
	case outcomeRequeue:
		err = d.Nack(false, true)
	case outcomeDrop:
		err = d.Nack(false, false)
	default:
		err = d.Ack(false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "delivery_tag", d.DeliveryTag, "error", err)
	}
}

func (c *PaymentConsumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *PaymentConsumer) handle(ctx context.Context, key string, body []byte) outcome {
	if key != RoutingKeyPaymentPaid {
		c.logger.DebugContext(ctx, "skip unknown routing key", "routing_key", key)
		return outcomeAck
	}

	var msg PaymentPaid
	if err := json.Unmarshal(body, &msg); err != nil || strings.TrimSpace(msg.BookingID) == "" {
		c.logger.WarnContext(ctx, "malformed payment message", "error", err)
		return outcomeDrop
	}

	logger := c.logger.With("booking_id", msg.BookingID)
	if _, err := c.confirmer.Confirm(ctx, msg.BookingID); err != nil {
		var stateErr *application.InvalidStateError
		switch {
		case errors.Is(err, application.ErrNotFound), errors.As(err, &stateErr):
			logger.WarnContext(ctx, "payment ignored", "error", err)
			return outcomeAck
		default:
			logger.ErrorContext(ctx, "payment confirmation failed, requeueing", "error", err)
			return outcomeRequeue
		}
	}
	logger.InfoContext(ctx, "booking confirmed by payment", "charge_id", msg.ChargeID)
	return outcomeAck
}
