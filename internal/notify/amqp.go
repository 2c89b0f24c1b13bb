package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of *amqp091.Channel used by AMQPSender.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSender hands messages to an external mailer through a durable queue.
type AMQPSender struct {
	pub   Publisher
	queue string
	from  string
}

// NewAMQPSender creates a sender that publishes to queue on the default
// exchange.
func NewAMQPSender(pub Publisher, queue, from string) *AMQPSender {
	return &AMQPSender{pub: pub, queue: queue, from: from}
}

func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if msg.From == "" {
		msg.From = s.from
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = s.pub.PublishWithContext(ctx, "", s.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.queue, err)
	}
	return nil
}

// DialAMQP connects to the broker and declares the durable receipt queue.
// The returned close func releases the channel and connection.
func DialAMQP(url, queue, from string) (*AMQPSender, func() error, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	closeFn := func() error {
		ch.Close()
		return conn.Close()
	}
	return NewAMQPSender(ch, queue, from), closeFn, nil
}
