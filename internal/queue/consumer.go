package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"discuit_search/internal/domain"
)

// ErrDeliveriesClosed is returned by Subscribe when the broker closes the
// delivery channel, usually because the connection dropped.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Consumer is a live feed reading post messages from the queue. Subscribe is
// not safe for concurrent use.
type Consumer struct {
	cfg      Config
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
	logger   *slog.Logger
}

func NewConsumer(cfg Config, prefetch int, logger *slog.Logger) (*Consumer, error) {
	if prefetch <= 0 {
		prefetch = 64
	}
	c := &Consumer{
		cfg:      cfg,
		queue:    cfg.QueueName,
		prefetch: prefetch,
		logger:   logger.With("feed", "amqp"),
	}
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureConnected reopens the connection and the channel when either was
// closed.
func (c *Consumer) ensureConnected() error {
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	if c.conn != nil {
		c.logger.Warn("rabbitmq connection lost, reconnecting")
		closeAll(c.conn, c.channel)
		c.conn, c.channel = nil, nil
	}

	conn, ch, err := connect(c.cfg, c.logger)
	if err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		closeAll(conn, ch)
		return fmt.Errorf("set qos: %w", err)
	}
	c.conn, c.channel = conn, ch
	return nil
}

// Subscribe delivers posts to out until ctx is done. A message is acked once
// the post was handed over; malformed messages are rejected without requeue.
// A lost connection is reopened on the next call.
func (c *Consumer) Subscribe(ctx context.Context, out chan<- domain.Post) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consuming posts", "queue", c.queue, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrDeliveriesClosed
			}
			if err := c.handle(ctx, d, out); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, out chan<- domain.Post) error {
	post, err := decodeMessage(d.Body)
	if err != nil {
		c.logger.Warn("rejecting message", "message_id", d.MessageId, "error", err)
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("reject: %w", err)
		}
		return nil
	}

	select {
	case out <- post:
	case <-ctx.Done():
		// Unacked deliveries are redelivered once the channel closes.
		return ctx.Err()
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

func (c *Consumer) Close() error {
	return closeAll(c.conn, c.channel)
}
