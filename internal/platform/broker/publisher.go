// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package broker connects the storefront to RabbitMQ.

The API publishes [events.Envelope] messages to one durable queue; the
notifier consumes them. Messages are persistent JSON so they survive a broker
restart.
*/
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/pkg/uuidv7"
)

// publishTimeout bounds a single publish so a stalled broker cannot hold a
// checkout request.
const publishTimeout = 3 * time.Second

// Publisher publishes domain events to a durable queue. It keeps one
// connection and channel and re-dials lazily after a failure.
type Publisher struct {
	url    string
	queue  string
	logger *slog.Logger

	mu         sync.Mutex
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewPublisher creates a publisher for queue. No connection is made until
// the first publish.
func NewPublisher(url, queue string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, logger: logger}
}

// Publish wraps payload in an envelope and sends it.
func (publisher *Publisher) Publish(ctx context.Context, eventType events.Type, payload any) error {
	envelope, err := newEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("broker: marshal envelope failed: %w", err)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	channel, err := publisher.ensureChannel()
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	message := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.ID,
		Type:         string(eventType),
		Timestamp:    envelope.OccurredAt,
		Body:         body,
	}

	// Default exchange, routing key = queue name
	if err := channel.PublishWithContext(publishCtx, "", publisher.queue, false, false, message); err != nil {
		publisher.resetLocked()
		return fmt.Errorf("broker: publish failed: %w", err)
	}

	publisher.logger.Debug("event_published",
		slog.String("event_id", envelope.ID),
		slog.String("type", string(eventType)),
	)
	return nil
}

// Close releases the channel and connection.
func (publisher *Publisher) Close() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	var err error
	if publisher.channel != nil {
		err = publisher.channel.Close()
	}
	if publisher.connection != nil {
		if cerr := publisher.connection.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	publisher.channel, publisher.connection = nil, nil
	return err
}

func (publisher *Publisher) ensureChannel() (*amqp.Channel, error) {
	if publisher.channel != nil && !publisher.channel.IsClosed() {
		return publisher.channel, nil
	}
	publisher.resetLocked()

	connection, err := amqp.Dial(publisher.url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial failed: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("broker: channel open failed: %w", err)
	}
	if err := declareQueue(channel, publisher.queue); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, err
	}

	publisher.connection, publisher.channel = connection, channel
	return channel, nil
}

func (publisher *Publisher) resetLocked() {
	if publisher.channel != nil {
		_ = publisher.channel.Close()
	}
	if publisher.connection != nil {
		_ = publisher.connection.Close()
	}
	publisher.channel, publisher.connection = nil, nil
}

// declareQueue makes sure the durable queue exists. Idempotent.
func declareQueue(channel *amqp.Channel, queue string) error {
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: queue declare failed: %w", err)
	}
	return nil
}

func newEnvelope(eventType events.Type, payload any) (events.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("broker: marshal payload failed: %w", err)
	}

	return events.Envelope{
		ID:         uuidv7.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}
