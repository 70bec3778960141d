package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/partner-portal/internal/logger"
)

// Publisher sends domain events.  Callers treat failures as best effort.
type Publisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// AMQPPublisher publishes JSON events to durable queues on the default
// exchange.  The connection is dialed lazily and redialed after a failure.
type AMQPPublisher struct {
	url string
	log logger.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	declared map[string]bool
}

// NewAMQPPublisher returns a publisher for url.  No connection is made until
// the first Publish.
func NewAMQPPublisher(url string, log logger.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, log: log, declared: map[string]bool{}}
}

// Publish marshals event and publishes it as a persistent message routed to
// queue.  Errors are logged and returned so the caller can ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: channel unavailable", map[string]interface{}{"queue": queue})
		return err
	}
	defer func() { _ = ch.Close() }()

	if !p.declared[queue] {
		// durable so messages survive broker restarts
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			p.log.WithError(err).Warn("rabbitmq: queue declare failed", map[string]interface{}{"queue": queue})
			return err
		}
		p.declared[queue] = true
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		p.log.WithError(err).Warn("rabbitmq: publish failed", map[string]interface{}{"queue": queue})
		return err
	}
	return nil
}

// Close closes the underlying connection, if any.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		if p.url == "" {
			return nil, errors.New("rabbitmq: no url configured")
		}
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		p.conn = conn
		p.declared = map[string]bool{}
	}
	ch, err := p.conn.Channel()
	if err != nil {
		p.reset()
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.declared = map[string]bool{}
}
