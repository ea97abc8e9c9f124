package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/foodhub/internal/config"
	"github.com/joao-fontenele/foodhub/internal/messaging"
	"github.com/joao-fontenele/foodhub/internal/telemetry"
	"github.com/joao-fontenele/foodhub/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	if cfg.Services.EmailURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	notifications := worker.NewNotificationHandler(cfg.Services.EmailURL, cfg.Checkout.Currency, cfg.Email.OpsEmail, httpClient, logger)

	subscriptions := map[string]messaging.HandlerFunc{
		messaging.TopicOrderCreated:        notifications.HandleOrderCreated,
		messaging.TopicOrderPaymentFlagged: notifications.HandlePaymentFlagged,
	}

	g, gctx := errgroup.WithContext(ctx)
	for topic, handle := range subscriptions {
		consumer := messaging.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID,
			messaging.WithLogger(logger.With("topic", topic)),
			messaging.WithRetry(5, time.Second),
		)
		defer func() { _ = consumer.Close() }()

		g.Go(func() error {
			logger.Info("consuming", "topic", topic, "group_id", cfg.Kafka.GroupID)
			return consumer.Consume(gctx, handle)
		})
	}

	logger.Info("starting notification worker", "brokers", cfg.Kafka.Brokers)

	if err := g.Wait(); err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumers stopped")
}
