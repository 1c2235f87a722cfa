// Package service holds outbound integrations used by the handlers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/stall-dashboard/internal/queue"
)

// Publisher sends payment events to a durable RabbitMQ queue.  Each publish
// opens its own connection, which suits the low event rate of the dashboard.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url, queueName string) *Publisher {
	return &Publisher{URL: url, Queue: queueName}
}

// PublishPaymentRecorded publishes ev as a persistent JSON message.
func (p *Publisher) PublishPaymentRecorded(ctx context.Context, ev queue.PaymentRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
