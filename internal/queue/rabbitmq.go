// Package queue carries new posts over RabbitMQ: the relay publishes them and
// indexers consume them as their live feed.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"discuit_search/internal/domain"
)

var ErrInvalidMessage = errors.New("invalid post message")

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// PostMessage is the body of every message on the exchange.
type PostMessage struct {
	Post      domain.Post `json:"post"`
	Timestamp time.Time   `json:"timestamp"`
}

func encodeMessage(post *domain.Post) ([]byte, error) {
	return json.Marshal(PostMessage{Post: *post, Timestamp: time.Now().UTC()})
}

func decodeMessage(body []byte) (domain.Post, error) {
	var msg PostMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.Post{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Post.ID == "" || msg.Post.PublicID == "" {
		return domain.Post{}, fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	return msg.Post, nil
}

// connect dials the broker and declares the exchange, the queue and their
// binding.
func connect(cfg Config, logger *slog.Logger) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return conn, ch, nil
}

func closeAll(conn *amqp.Connection, ch *amqp.Channel) error {
	if ch != nil {
		ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
