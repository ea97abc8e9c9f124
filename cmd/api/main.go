package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/foodhub/internal/auth"
	"github.com/joao-fontenele/foodhub/internal/catalog"
	"github.com/joao-fontenele/foodhub/internal/checkout"
	"github.com/joao-fontenele/foodhub/internal/config"
	"github.com/joao-fontenele/foodhub/internal/messaging"
	"github.com/joao-fontenele/foodhub/internal/orders"
	"github.com/joao-fontenele/foodhub/internal/payment"
	"github.com/joao-fontenele/foodhub/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	for name, value := range map[string]string{
		"POSTGRES_URL":          cfg.Postgres.URL,
		"STRIPE_SECRET_KEY":     cfg.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.Stripe.WebhookSecret,
		"JWT_SECRET":            cfg.Auth.JWTSecret,
	} {
		if value == "" {
			logger.Error(name + " environment variable is required")
			os.Exit(1)
		}
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var materializerOpts []orders.MaterializerOption
	if len(cfg.Kafka.Brokers) > 0 {
		producerOpts := []messaging.ProducerOption{
			messaging.WithRequiredAcks(kafka.RequiredAcks(cfg.Kafka.RequiredAcks)),
			messaging.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		}
		created := messaging.NewProducer(cfg.Kafka.Brokers, messaging.TopicOrderCreated, producerOpts...)
		defer func() { _ = created.Close() }()
		flagged := messaging.NewProducer(cfg.Kafka.Brokers, messaging.TopicOrderPaymentFlagged, producerOpts...)
		defer func() { _ = flagged.Close() }()
		logger.Info("publishing order events", "topics", []string{created.Topic(), flagged.Topic()})

		materializerOpts = append(materializerOpts,
			orders.WithCreatedPublisher(created),
			orders.WithFlaggedPublisher(flagged),
		)
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	stripeClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	provider := payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, stripeClient)

	restaurants := catalog.NewRestaurantRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, logger)

	builder := checkout.NewBuilder(restaurants, provider, checkout.Config{
		Currency:         cfg.Checkout.Currency,
		AllowedCountries: cfg.Checkout.AllowedCountries,
		FrontendURL:      cfg.Checkout.FrontendURL,
	}, logger)
	checkoutHandler := checkout.NewHandler(builder, logger)

	materializer := orders.NewMaterializer(orderRepo, provider, logger, materializerOpts...)
	ordersHandler := orders.NewHandler(materializer, orderRepo, restaurants, provider, logger)
	ordersHandler.SetVerifyTimeout(cfg.Checkout.VerifyTimeout)

	catalogHandler := catalog.NewHandler(restaurants, logger)

	route := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(h)
	}
	private := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(authenticator.Require(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /payment/create-checkout-session", private(checkoutHandler.HandleCreateSession))
	mux.HandleFunc("POST /payment/verify-order", private(ordersHandler.HandleVerify))
	mux.HandleFunc("POST /order/webhook", route(ordersHandler.HandleWebhook))
	mux.HandleFunc("GET /order", private(ordersHandler.HandleList))
	mux.HandleFunc("GET /order/{orderId}", private(ordersHandler.HandleGet))
	mux.HandleFunc("GET /restaurant/orders", private(ordersHandler.HandleRestaurantOrders))
	mux.HandleFunc("PATCH /restaurant/order/{orderId}/status", private(ordersHandler.HandleUpdateStatus))
	mux.HandleFunc("GET /restaurant/{id}", route(catalogHandler.HandleGetRestaurant))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, "ok"
		if err := db.PingContext(r.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, "database unavailable"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": body})
	})
	mux.Handle("GET /metrics", metricsHandler)

	addr := cfg.Server.Addr("8081")
	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(mux, "api", otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting api service", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
