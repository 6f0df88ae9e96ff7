// Package messaging forwards allocation events to a RabbitMQ topic exchange
// so warehouse systems can follow commits and cancellations.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
)

// Channel is the part of *amqp.Channel the publisher uses
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher is an event handler that publishes each event as JSON.
// The routing key is the event type, e.g. "allocation.committed".
type Publisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	types    map[string]bool
	timeout  time.Duration
	logger   zerolog.Logger
}

// Dial connects to url and declares a durable topic exchange
func Dial(url, exchange string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel. Without type filters every event is published.
func NewPublisher(ch Channel, exchange string, logger zerolog.Logger, eventTypes ...string) *Publisher {
	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   logger.With().Str("component", "publisher").Str("exchange", exchange).Logger(),
	}
	if len(eventTypes) > 0 {
		p.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			p.types[t] = true
		}
	}
	return p
}

// CanHandle reports whether the event type is forwarded
func (p *Publisher) CanHandle(eventType string) bool {
	return p.types == nil || p.types[eventType]
}

// Handle publishes one event
func (p *Publisher) Handle(event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, event.Type(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp(),
		Type:         event.Type(),
		Headers:      amqp.Table{"stream_id": event.StreamID(), "version": int32(event.Version())},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type(), err)
	}
	p.logger.Debug().Str("type", event.Type()).Str("stream", event.StreamID()).Msg("event published")
	return nil
}

// Close closes the channel and the connection when the publisher dialed it
func (p *Publisher) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
