package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errSinkPanic = errors.New("event sink panicked")

// AuditSink writes every event as a structured log record.
type AuditSink struct {
	log *zap.Logger
}

func NewAuditSink(log *zap.Logger) *AuditSink {
	return &AuditSink{log: log.With(zap.String("sink", "audit"))}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Deliver(_ context.Context, ev Event) error {
	s.log.Info("Domain event",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.Time("occurred_at", ev.OccurredAt),
		zap.Any("payload", ev.Payload),
	)
	return nil
}

// RabbitMQSink publishes events to a durable topic exchange with the event
// type as routing key. The connection is opened lazily and re-dialled after
// any channel or connection failure.
type RabbitMQSink struct {
	url      string
	exchange string
	queues   []string
	log      *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQSink declares, on first use, one durable queue per collaborator
// (e.g. "notifications", "audit") bound to every routing key of the exchange.
func NewRabbitMQSink(url, exchange string, queues []string, log *zap.Logger) *RabbitMQSink {
	return &RabbitMQSink{
		url:      url,
		exchange: exchange,
		queues:   queues,
		log:      log.With(zap.String("sink", "rabbitmq")),
	}
}

func (s *RabbitMQSink) Name() string { return "rabbitmq" }

func (s *RabbitMQSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		s.exchange,
		string(ev.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Type:         string(ev.Type),
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		s.resetLocked()
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *RabbitMQSink) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.resetLocked()

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", s.exchange, err)
	}
	for _, name := range s.queues {
		queue := s.exchange + "." + name
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, "#", s.exchange, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	s.conn, s.ch = conn, ch
	s.log.Info("Connected to RabbitMQ", zap.String("exchange", s.exchange), zap.Strings("queues", s.queues))
	return ch, nil
}

func (s *RabbitMQSink) resetLocked() error {
	var err error
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	return err
}
