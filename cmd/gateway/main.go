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

	"github.com/joao-fontenele/foodhub/internal/config"
	"github.com/joao-fontenele/foodhub/internal/gateway"
	"github.com/joao-fontenele/foodhub/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	if cfg.Services.APIURL == "" {
		logger.Error("API_SERVICE_URL is required")
		os.Exit(1)
	}

	// Longer than the API's verify timeout so it can answer 504 itself.
	httpClient := &http.Client{
		Timeout:   cfg.Checkout.VerifyTimeout + 10*time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := gateway.NewHandler(gateway.NewServiceProxy(cfg.Services.APIURL, httpClient), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/payment/create-checkout-session", telemetry.WithHTTPRoute(handler.HandlePayment))
	mux.HandleFunc("POST /api/payment/verify-order", telemetry.WithHTTPRoute(handler.HandlePayment))
	mux.HandleFunc("POST /api/v1/order/webhook", telemetry.WithHTTPRoute(handler.HandleOrder))
	mux.HandleFunc("GET /api/v1/order", telemetry.WithHTTPRoute(handler.HandleOrder))
	mux.HandleFunc("GET /api/v1/order/{orderId}", telemetry.WithHTTPRoute(handler.HandleOrder))
	mux.HandleFunc("GET /api/v1/restaurant/orders", telemetry.WithHTTPRoute(handler.HandleRestaurant))
	mux.HandleFunc("PATCH /api/v1/restaurant/order/{orderId}/status", telemetry.WithHTTPRoute(handler.HandleRestaurant))
	mux.HandleFunc("GET /api/v1/restaurant/{id}", telemetry.WithHTTPRoute(handler.HandleRestaurant))

	addr := cfg.Server.Addr("8080")
	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(mux, "gateway", otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: httpClient.Timeout + 5*time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "addr", addr)
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
