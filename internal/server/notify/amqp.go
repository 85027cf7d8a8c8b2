package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var openChannel = func(url string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	return ch, conn, nil
}

// AMQPSink publishes Notification events as persistent JSON messages to a
// durable queue on the default exchange. The connection is opened lazily
// and reopened after a failed publish.
type AMQPSink struct {
	url   string
	queue string
	log   logging.Logger

	mu   sync.Mutex
	ch   amqpChannel
	conn io.Closer
	now  func() time.Time
}

func NewAMQPSink(url, queue string, log logging.Logger) *AMQPSink {
	return &AMQPSink{
		url:   url,
		queue: queue,
		log:   log.With("module", "amqp_sink"),
		now:   time.Now,
	}
}

func (s *AMQPSink) Send(ctx context.Context, address, subject, body string) error {
	payload, err := json.Marshal(Notification{
		To:        address,
		Subject:   subject,
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    s.now().UTC(),
		Body:         payload,
	}
	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		s.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) connect() error {
	if s.ch != nil {
		return nil
	}
	ch, conn, err := openChannel(s.url)
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	s.ch, s.conn = ch, conn
	return nil
}

func (s *AMQPSink) reset() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.ch, s.conn = nil, nil
}

// Close drops the broker connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
