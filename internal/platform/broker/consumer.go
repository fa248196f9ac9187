// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/taibuivan/whiphelmets/internal/events"
)

const (
	// prefetch caps unacknowledged deliveries per consumer.
	prefetch = 20
	// maxBackoff caps the delay between reconnect attempts.
	maxBackoff = 30 * time.Second
)

// Handler processes one event. Returning an error rejects the delivery
// without requeueing it, so a poison message cannot loop forever.
type Handler func(ctx context.Context, envelope events.Envelope) error

// Consumer reads events from a durable queue and hands them to a [Handler].
type Consumer struct {
	url     string
	queue   string
	handler Handler
	logger  *slog.Logger
}

// NewConsumer creates a consumer for queue.
func NewConsumer(url, queue string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{url: url, queue: queue, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// whenever the connection drops.
func (consumer *Consumer) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		connection, err := amqp.Dial(consumer.url)
		if err != nil {
			consumer.logger.Warn("broker_dial_failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = consumer.consume(ctx, connection)
		_ = connection.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		consumer.logger.Warn("broker_consume_loop_ended", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (consumer *Consumer) consume(ctx context.Context, connection *amqp.Connection) error {
	channel, err := connection.Channel()
	if err != nil {
		return fmt.Errorf("broker: channel open failed: %w", err)
	}
	defer channel.Close()

	if err := channel.Qos(prefetch, 0, false); err != nil {
		consumer.logger.Warn("broker_qos_failed", slog.String("error", err.Error()))
	}
	if err := declareQueue(channel, consumer.queue); err != nil {
		return err
	}

	deliveries, err := channel.Consume(consumer.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume failed: %w", err)
	}

	consumer.logger.Info("broker_consumer_started", slog.String("queue", consumer.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("broker: deliveries channel closed")
			}
			consumer.dispatch(ctx, delivery)
		}
	}
}

func (consumer *Consumer) dispatch(ctx context.Context, delivery amqp.Delivery) {
	var envelope events.Envelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		consumer.logger.Error("broker_message_malformed",
			slog.String("message_id", delivery.MessageId),
			slog.String("error", err.Error()),
		)
		_ = delivery.Nack(false, false)
		return
	}

	if err := consumer.handler(ctx, envelope); err != nil {
		consumer.logger.Error("broker_message_rejected",
			slog.String("event_id", envelope.ID),
			slog.String("type", string(envelope.Type)),
			slog.String("error", err.Error()),
		)
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
