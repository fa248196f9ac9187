// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify turns domain events into customer emails.

It runs out of band: the notifier process consumes events from the broker
and a failed delivery is logged, never retried into the ledger.

Architecture:

  - Mailer: Transport abstraction (SMTP in production, log sink otherwise).
  - Templates: Spanish copy of every message, HTML and plain text.
  - Notifier: Maps each event type to the message it produces.
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("notify: message has no recipient")

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a [Message].
type Mailer interface {
	Send(ctx context.Context, message Message) error
}

// # SMTP Transport

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPMailer sends messages through an SMTP relay, upgrading to TLS with
// STARTTLS when the server offers it.
type SMTPMailer struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer for the relay described by config.
func NewSMTPMailer(config SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Port == 0 {
		config.Port = 587
	}
	return &SMTPMailer{config: config, logger: logger}
}

/*
Send delivers message as a multipart/alternative email with
quoted-printable parts.

Parameters:
  - ctx: context.Context (bounds the whole SMTP dialogue)
  - message: Message

Returns:
  - error: ErrNoRecipient, connection or protocol failures
*/
func (mailer *SMTPMailer) Send(ctx context.Context, message Message) error {
	if message.To == "" {
		return ErrNoRecipient
	}

	msg, err := mailer.compose(message)
	if err != nil {
		return fmt.Errorf("notify_smtp_build_failed: %w", err)
	}

	client, err := mail.NewClient(mailer.config.Host, mailer.clientOptions()...)
	if err != nil {
		return fmt.Errorf("notify_smtp_client_failed: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("notify_smtp_dial_failed: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			mailer.logger.DebugContext(ctx, "smtp_close_failed", slog.Any("error", cerr))
		}
	}()

	if err := client.Send(msg); err != nil {
		return fmt.Errorf("notify_smtp_send_failed: %w", err)
	}

	mailer.logger.InfoContext(ctx, "email_sent",
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
	)
	return nil
}

func (mailer *SMTPMailer) clientOptions() []mail.Option {
	options := []mail.Option{
		mail.WithPort(mailer.config.Port),
		mail.WithTimeout(mailer.config.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if mailer.config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(mailer.config.Username),
			mail.WithPassword(mailer.config.Password),
		)
	}
	return options
}

// compose builds the text + HTML alternative message.
func (mailer *SMTPMailer) compose(message Message) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithEncoding(mail.EncodingQP), mail.WithCharset(mail.CharsetUTF8))

	if err := msg.FromFormat(mailer.config.FromName, mailer.config.From); err != nil {
		return nil, err
	}
	if err := msg.To(message.To); err != nil {
		return nil, err
	}
	msg.Subject(message.Subject)
	msg.SetDate()
	msg.SetMessageID()

	switch {
	case message.Text != "" && message.HTML != "":
		msg.SetBodyString(mail.TypeTextPlain, message.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, message.HTML)
	case message.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, message.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, message.Text)
	}
	return msg, nil
}

// # Log Transport

// LogMailer writes messages to the logger instead of sending them. It is
// used when no SMTP relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements [Mailer].
func (mailer *LogMailer) Send(ctx context.Context, message Message) error {
	if message.To == "" {
		return ErrNoRecipient
	}
	mailer.logger.InfoContext(ctx, "email_logged",
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
		slog.Int("html_bytes", len(message.HTML)),
	)
	mailer.logger.DebugContext(ctx, "email_logged_body", slog.String("text", message.Text))
	return nil
}
