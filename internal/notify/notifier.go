// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/whiphelmets/internal/events"
)

// # Event Dispatch

// Notifier sends the email each domain event calls for.
type Notifier struct {
	mailer   Mailer
	renderer *Renderer
	logger   *slog.Logger
}

// NewNotifier creates a notifier delivering through mailer.
func NewNotifier(mailer Mailer, renderer *Renderer, logger *slog.Logger) *Notifier {
	return &Notifier{mailer: mailer, renderer: renderer, logger: logger}
}

/*
Handle renders and sends the email for one event. It matches the broker
handler signature.

Description: Event types without an email are acknowledged silently. A
payload that cannot be decoded or rendered, and a failed delivery, are
logged and returned so the broker drops the message.

Parameters:
  - ctx: context.Context
  - envelope: events.Envelope

Returns:
  - error: Decode, render or delivery failures
*/
func (notifier *Notifier) Handle(ctx context.Context, envelope events.Envelope) error {
	message, ok, err := notifier.compose(envelope)
	if err != nil {
		notifier.logger.ErrorContext(ctx, "email_compose_failed",
			slog.String("event_id", envelope.ID),
			slog.String("type", string(envelope.Type)),
			slog.Any("error", err),
		)
		return err
	}
	if !ok {
		notifier.logger.DebugContext(ctx, "event_ignored", slog.String("type", string(envelope.Type)))
		return nil
	}

	if err := notifier.mailer.Send(ctx, message); err != nil {
		notifier.logger.ErrorContext(ctx, "email_send_failed",
			slog.String("event_id", envelope.ID),
			slog.String("type", string(envelope.Type)),
			slog.String("to", message.To),
			slog.Any("error", err),
		)
		return fmt.Errorf("notify_send_failed: %w", err)
	}
	return nil
}

// compose maps the event to its message. ok is false for event types that
// send no email.
func (notifier *Notifier) compose(envelope events.Envelope) (Message, bool, error) {
	switch envelope.Type {

	case events.TypeUserRegistered:
		var payload events.UserRegistered
		if err := envelope.Decode(&payload); err != nil {
			return Message{}, false, fmt.Errorf("notify_decode_failed: %w", err)
		}
		message, err := notifier.renderer.Welcome(payload)
		return message, err == nil, err

	case events.TypePasswordResetRequested:
		var payload events.PasswordResetRequested
		if err := envelope.Decode(&payload); err != nil {
			return Message{}, false, fmt.Errorf("notify_decode_failed: %w", err)
		}
		message, err := notifier.renderer.PasswordReset(payload)
		return message, err == nil, err

	case events.TypeOrderPlaced:
		var payload events.OrderPlaced
		if err := envelope.Decode(&payload); err != nil {
			return Message{}, false, fmt.Errorf("notify_decode_failed: %w", err)
		}
		message, err := notifier.renderer.OrderPlaced(payload)
		return message, err == nil, err

	case events.TypeOrderStatusChanged:
		var payload events.OrderStatusChanged
		if err := envelope.Decode(&payload); err != nil {
			return Message{}, false, fmt.Errorf("notify_decode_failed: %w", err)
		}
		message, err := notifier.renderer.OrderStatusChanged(payload)
		return message, err == nil, err
	}

	return Message{}, false, nil
}
