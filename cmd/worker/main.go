package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront-payments/internal/config"
	"github.com/joao-fontenele/storefront-payments/internal/messaging"
	"github.com/joao-fontenele/storefront-payments/internal/telemetry"
	"github.com/joao-fontenele/storefront-payments/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "notification-worker", "0.1.0", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	notifications := worker.NewNotificationHandler(cfg.EmailServiceURL, cfg.RecipientDomain, httpClient, logger)

	subscriptions := []struct {
		topic   string
		handler messaging.HandlerFunc
	}{
		{messaging.TopicOrderCreated, notifications.HandleOrderCreated},
		{messaging.TopicPaymentSettled, notifications.HandlePaymentSettled},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subscriptions {
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, sub.topic, cfg.GroupID,
			messaging.WithLogger(logger),
			messaging.WithRetry(3, time.Second),
		)
		defer func() { _ = consumer.Close() }()

		g.Go(func() error {
			logger.Info("consuming", "topic", sub.topic, "group_id", cfg.GroupID)
			return consumer.Consume(gctx, sub.handler)
		})
	}

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers)

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumers stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
