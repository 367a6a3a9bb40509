//go:build integration

package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"discuit_search/internal/domain"
	"discuit_search/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "exchange-" + name,
		RoutingKey: "posts.new",
		QueueName:  "queue-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessageFormat() {
	cfg := s.config("format")
	pub, err := NewPublisher(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	post := &domain.Post{
		ID:            "p1",
		PublicID:      "x1",
		Title:         "hello",
		Body:          utils.Ptr("world"),
		CommunityName: "golang",
	}
	s.Require().NoError(pub.Publish(s.ctx, post))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal("x1", msg.MessageId)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	got, err := decodeMessage(msg.Body)
	s.Require().NoError(err)
	s.Equal("hello", got.Title)
	s.Equal("world", *got.Body)
}

func (s *RabbitMQIntegrationSuite) TestConsumer_DeliversPublishedPosts() {
	cfg := s.config("consume")
	pub, err := NewPublisher(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()
	consumer, err := NewConsumer(cfg, 8, s.logger)
	s.Require().NoError(err)
	defer consumer.Close()

	for _, id := range []string{"a", "b", "c"} {
		s.Require().NoError(pub.Publish(s.ctx, &domain.Post{ID: id, PublicID: "pub-" + id}))
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	out := make(chan domain.Post)
	done := make(chan error, 1)
	go func() { done <- consumer.Subscribe(ctx, out) }()

	var got []string
	for len(got) < 3 {
		select {
		case p := <-out:
			got = append(got, p.ID)
		case <-ctx.Done():
			s.FailNow("timeout waiting for posts")
		}
	}
	cancel()

	s.Equal([]string{"a", "b", "c"}, got)
	s.ErrorIs(<-done, context.Canceled)
}

func (s *RabbitMQIntegrationSuite) TestConsumer_ReconnectsAfterConnectionLoss() {
	cfg := s.config("reconnect")
	pub, err := NewPublisher(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()
	consumer, err := NewConsumer(cfg, 8, s.logger)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	out := make(chan domain.Post, 1)

	lost := consumer.conn
	done := make(chan error, 1)
	go func() { done <- consumer.Subscribe(ctx, out) }()
	time.Sleep(200 * time.Millisecond)
	s.Require().NoError(lost.Close())
	s.ErrorIs(<-done, ErrDeliveriesClosed)

	go func() { done <- consumer.Subscribe(ctx, out) }()
	s.Require().NoError(pub.Publish(s.ctx, &domain.Post{ID: "after", PublicID: "pub-after"}))

	select {
	case p := <-out:
		s.Equal("after", p.ID)
	case <-ctx.Done():
		s.FailNow("no post after reconnecting")
	}
	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *RabbitMQIntegrationSuite) TestConsumer_RejectsMalformedMessages() {
	cfg := s.config("reject")
	consumer, err := NewConsumer(cfg, 8, s.logger)
	s.Require().NoError(err)
	defer consumer.Close()
	pub, err := NewPublisher(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	s.Require().NoError(pub.channel.PublishWithContext(s.ctx, cfg.Exchange, cfg.RoutingKey, false, false,
		amqp.Publishing{ContentType: "application/json", Body: []byte(`{"post":{}}`)}))
	s.Require().NoError(pub.Publish(s.ctx, &domain.Post{ID: "ok", PublicID: "pub-ok"}))

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	out := make(chan domain.Post, 1)
	go func() { _ = consumer.Subscribe(ctx, out) }()

	select {
	case p := <-out:
		s.Equal("ok", p.ID)
	case <-ctx.Done():
		s.FailNow("timeout waiting for post")
	}
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
