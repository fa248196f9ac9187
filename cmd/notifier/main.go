// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command notifier consumes storefront domain events from the broker and
// sends the matching customer emails.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Pick the mail transport (SMTP, or log-only when unconfigured).
//  4. Consume events until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	// Order dates are rendered in Buenos Aires time even on images without zoneinfo.
	_ "time/tzdata"

	"github.com/taibuivan/whiphelmets/internal/notify"
	"github.com/taibuivan/whiphelmets/internal/platform/broker"
	"github.com/taibuivan/whiphelmets/internal/platform/config"
	"github.com/taibuivan/whiphelmets/internal/platform/constants"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With(slog.String("app", "whiphelmets-notifier"))
	slog.SetDefault(log)

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Error("startup_failure", slog.String("context", "load configuration"), slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		log.Error("startup_failure", slog.String("context", "AMQP_URL is required by the notifier"))
		os.Exit(1)
	}

	// ── 3. Mail Transport ─────────────────────────────────────────────────
	var mailer notify.Mailer
	if cfg.SMTPServer != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
			FromName: cfg.FromName,
			Timeout:  cfg.IntegrationTimeout,
		}, log)
	} else {
		log.Warn("smtp_disabled", slog.String("reason", "SMTP_SERVER is empty, emails are only logged"))
		mailer = notify.NewLogMailer(log)
	}

	renderer, err := notify.NewRenderer(cfg.PublicBaseURL)
	if err != nil {
		log.Error("startup_failure", slog.String("context", "parse email templates"), slog.Any("error", err))
		os.Exit(1)
	}
	notifier := notify.NewNotifier(mailer, renderer, log)

	// ── 4. Consume ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := broker.NewConsumer(cfg.AMQPURL, cfg.AMQPQueue, notifier.Handle, log)

	log.Info("notifier_started", slog.String("queue", cfg.AMQPQueue), slog.String("version", constants.AppVersion))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("notifier_stopped", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("notifier_stopped")
}
