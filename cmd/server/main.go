package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/itbasis/go-clock"

	"github.com/turfwar-server/internal/auth"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/handler"
	"github.com/turfwar-server/internal/kafka"
	"github.com/turfwar-server/internal/notify"
	"github.com/turfwar-server/internal/postgres"
	"github.com/turfwar-server/internal/redis"
	"github.com/turfwar-server/internal/service"
	"github.com/turfwar-server/internal/web"
	"github.com/turfwar-server/internal/websocket"
	"github.com/turfwar-server/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Error("auth.jwt_secret is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis cache. The services take interfaces, so only assign
	// them when the cache actually exists.
	var (
		matchCache *redis.MatchCache
		listCache  service.MatchCache
		userCache  service.UserCache
	)
	if cfg.Cache.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		matchCache, err = redis.NewMatchCache(&cfg.Redis, &cfg.Cache, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", "error", err)
		} else {
			defer matchCache.Close()
			listCache = matchCache
			userCache = matchCache
			logger.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Events fan out through Kafka when it is available so every instance
	// reaches its own subscribers. Otherwise the local hub is the publisher.
	var (
		publisher     service.Publisher = wsHub
		kafkaProducer *kafka.Producer
		kafkaConsumer *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaProducer, kafkaConsumer = startKafka(&cfg.Kafka, wsHub, logger)
		if kafkaProducer != nil {
			publisher = kafkaProducer
		}
	}

	// Initialize services
	matchService := service.NewMatchService(
		postgresRepo,
		listCache,
		publisher,
		&cfg.Store,
		clk,
		logger,
	)
	wsHub.SetActivitySource(matchService)

	renderer := web.NewRenderer()
	financeService := service.NewFinanceService(
		postgresRepo,
		postgresRepo,
		userCache,
		notify.NewBrevoDispatcher(&cfg.Email, logger),
		renderer,
		publisher,
		&cfg.Payment,
		clk,
		logger,
	)

	// Keep the match list warm
	var refresher *worker.CacheRefresher
	if listCache != nil && cfg.Cache.RefreshInterval > 0 {
		refresher = worker.NewCacheRefresher(matchService, &cfg.Cache, clk, logger)
		if err := refresher.Start(ctx); err != nil {
			logger.Error("failed to start cache refresher", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		matchService,
		financeService,
		wsHub,
		renderer,
		auth.NewVerifier(&cfg.Auth),
		&cfg.Server,
		logger,
	)
	httpHandler.AddReadinessCheck("postgres", postgresRepo.Ping)
	if matchCache != nil {
		httpHandler.AddReadinessCheck("redis", matchCache.Ping)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting requests before tearing down what they depend on
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if refresher != nil {
		if err := refresher.Stop(); err != nil {
			logger.Error("failed to stop cache refresher", "error", err)
		}
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	wsHub.Stop()

	logger.Info("server stopped")
}

// startKafka connects the event producer and the consumer that feeds the
// local hub. Either may come back nil; the server keeps running without them.
func startKafka(cfg *config.KafkaConfig, hub *websocket.Hub, logger *slog.Logger) (*kafka.Producer, *kafka.Consumer) {
	producer, err := kafka.NewProducer(cfg, logger)
	if err != nil {
		logger.Warn("failed to create Kafka producer, publishing locally", "error", err)
		return nil, nil
	}

	consumer, err := kafka.NewConsumer(cfg, hub, logger)
	if err != nil {
		logger.Warn("failed to create Kafka consumer, publishing locally", "error", err)
		producer.Close()
		return nil, nil
	}
	if err := consumer.Start(); err != nil {
		logger.Warn("failed to start Kafka consumer, publishing locally", "error", err)
		producer.Close()
		return nil, nil
	}

	logger.Info("Kafka producer and consumer started")
	return producer, consumer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
