package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/printpoint/handoff/internal/config"
	"github.com/printpoint/handoff/internal/infrastructure/courier/smtp"
	natsnotifier "github.com/printpoint/handoff/internal/infrastructure/notifier/nats"
	"github.com/printpoint/handoff/internal/observability/logging"
)

const serviceName = "handoff-courier"

// The courier drains the notification subject and hands each pickup-code
// message to the SMTP transport. It runs separately from the API so a
// slow mail relay never slows an upload.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := smtp.NewSender(smtp.Config{
		Addr:     cfg.SMTPAddr,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		logger.Error("smtp sender init failed", "error", err)
		os.Exit(1)
	}

	consumer, err := natsnotifier.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		logger.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	logger.Info("courier subscribed", "subject", cfg.NATSSubject)
	err = consumer.Subscribe(ctx, func(handlerCtx context.Context, delivery natsnotifier.Delivery) error {
		if err := sender.Deliver(handlerCtx, delivery.Destination, delivery.Body); err != nil {
			return err
		}
		logger.Info("delivered", "destination", delivery.Destination)
		return nil
	})
	if err != nil {
		logger.Error("courier subscription failed", "error", err)
		os.Exit(1)
	}
}
