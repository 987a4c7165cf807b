package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Job is the message body published for the mail worker.
type Job struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	QueuedAt time.Time `json:"queuedAt"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPMailer hands mail off to a queue instead of delivering it inline.
type AMQPMailer struct {
	conn    *amqp.Connection
	ch      publisher
	queue   string
	closeCh func() error
}

func NewAMQPMailer(url, queue string) (*AMQPMailer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQPMailer{conn: conn, ch: ch, queue: queue, closeCh: ch.Close}, nil
}

func (m *AMQPMailer) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(Job{To: to, Subject: subject, HTML: html, QueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode mail job: %w", err)
	}

	err = m.ch.PublishWithContext(ctx, "", m.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish mail job: %w", err)
	}
	return nil
}

func (m *AMQPMailer) Close() error {
	if m.closeCh != nil {
		_ = m.closeCh()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
