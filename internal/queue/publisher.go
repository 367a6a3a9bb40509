package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"discuit_search/internal/domain"
)

type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	conn, ch, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, post *domain.Post) error {
	body, err := encodeMessage(post)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    post.PublicID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("published post", "id", post.ID, "public_id", post.PublicID)

	return nil
}

func (p *Publisher) Close() error {
	return closeAll(p.conn, p.channel)
}
