// Package main runs the bus arrival smart-home sensor and its account-linking endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/internal/arrival"
	"github.com/wrale/smarthome-transit-sensor/internal/logging"
	"github.com/wrale/smarthome-transit-sensor/internal/metrics"
)

// Version is set by the build process
var Version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg Config, logger *zap.Logger) error {
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing Redis URL: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("closing Redis connection", zap.Error(err))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		logger.Info("using Redis stores")
	} else {
		logger.Info("using in-memory stores")
	}

	if cfg.LTAAPIKey == "" {
		logger.Warn("LTA_API_KEY not set; arrival queries will report unknown")
	}

	m := metrics.New()
	oracle := arrival.NewClient(arrival.Config{
		BaseURL:    cfg.LTABaseURL,
		AccountKey: cfg.LTAAPIKey,
	},
		arrival.WithHTTPClient(&http.Client{Timeout: cfg.LTAHTTPTimeout}),
		arrival.WithObserver(m),
	)

	comps, err := newComponents(cfg, redisClient, oracle, m, logger)
	if err != nil {
		return err
	}
	srv := newServer(cfg, comps, m, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Port),
			zap.String("base_url", cfg.BaseURL),
		)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case sig := <-shutdown:
		logger.Info("starting shutdown", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutting down server", zap.Error(err))
			if err := httpServer.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}
	return nil
}
