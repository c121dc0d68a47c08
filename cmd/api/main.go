package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/patron-payments/internal/api/router"
	appconfig "github.com/wolfman30/patron-payments/internal/config"
	"github.com/wolfman30/patron-payments/internal/gateway"
	"github.com/wolfman30/patron-payments/internal/observability/metrics"
	"github.com/wolfman30/patron-payments/internal/payments"
	"github.com/wolfman30/patron-payments/internal/velocity"
	"github.com/wolfman30/patron-payments/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patron-payments API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"gateway_delay", cfg.GatewayDelay.String(),
	)

	redisClient := connectRedis(context.Background(), cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildHandler(cfg, logger, redisClient, prometheus.NewRegistry()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires the gateway, velocity guards and metrics into the router.
// redisClient may be nil, which disables velocity guards.
func buildHandler(cfg *appconfig.Config, logger *logging.Logger, redisClient *redis.Client, reg *prometheus.Registry) http.Handler {
	var (
		gatewayMetrics *metrics.GatewayMetrics
		metricsHandler http.Handler
	)
	gwOpts := []gateway.Option{gateway.WithDelay(gateway.FixedDelay(cfg.GatewayDelay))}
	if cfg.MetricsEnabled {
		metricsHandler, gatewayMetrics = setupGatewayMetrics(reg)
		gwOpts = append(gwOpts, gateway.WithObserver(gatewayMetrics))
	}
	gw := gateway.New(logger.With("component", "gateway"), gwOpts...)

	var guard payments.VelocityGuard
	if redisClient != nil && cfg.VelocityEnabled {
		guard = velocity.NewChecker(redisClient, velocity.Config{
			MaxPaymentsPerPatron:     cfg.VelocityMaxPaymentsPerPatron,
			PaymentWindow:            cfg.VelocityPaymentWindow,
			MaxRefundsPerTransaction: cfg.VelocityMaxRefundsPerTxn,
			RefundWindow:             cfg.VelocityRefundWindow,
			EnablePaymentCheck:       true,
			EnableRefundCheck:        true,
		}, logger.With("component", "velocity"))
	}

	return router.New(&router.Config{
		Logger:             logger,
		PaymentsHandler:    payments.NewHandler(gw, guard, gatewayMetrics, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: corsOrigins(cfg, logger),
	})
}

// corsOrigins returns the configured allowlist. Production never honors the
// "*" wildcard; only explicitly listed origins are kept.
func corsOrigins(cfg *appconfig.Config, logger *logging.Logger) []string {
	if !cfg.IsProduction() {
		return cfg.CORSAllowedOrigins
	}
	origins := make([]string, 0, len(cfg.CORSAllowedOrigins))
	for _, origin := range cfg.CORSAllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			logger.Warn("ignoring wildcard CORS origin in production")
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

func setupGatewayMetrics(reg *prometheus.Registry) (http.Handler, *metrics.GatewayMetrics) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewGatewayMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// API then runs without velocity guards.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Info("redis not configured; velocity guards disabled")
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; velocity guards disabled", "error", err, "addr", cfg.RedisAddr)
		client.Close()
		return nil
	}
	return client
}
