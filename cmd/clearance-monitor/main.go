package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"clearance-monitor/internal/config"
	"clearance-monitor/internal/detection"
	"clearance-monitor/internal/ingest"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/registry"
	"clearance-monitor/internal/stats"
	"clearance-monitor/internal/store"
	"clearance-monitor/internal/transport/httpapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	cfg := config.Load()

	logger, err := initLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		detectors  store.DetectorStore
		violations store.ViolationStore
	)
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL())
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		detectors, violations = pg.Detectors, pg.Violations
		logger.Info("using postgres store", zap.String("host", cfg.DBHost))
	default:
		detectors = store.NewMemoryDetectorStore()
		violations = store.NewMemoryViolationStore()
		logger.Info("using in-memory store")
	}

	// Fan-out: in-process hub, optionally mirrored to Redis pub/sub.
	hub := notify.NewHub(cfg.SubscriberBufferSize, logger)
	var broadcaster notify.Broadcaster = hub
	if cfg.RedisAddr != "" {
		bridge, err := notify.NewRedisBridge(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer bridge.Close()
		broadcaster = notify.Fanout{hub, bridge}
		logger.Info("mirroring notifications to redis", zap.String("addr", cfg.RedisAddr))
	}
	notifier := notify.NewNotifier(broadcaster, logger)

	// Services
	reg := registry.New(detectors, violations, notifier, cfg.HeartbeatTimeout, cfg.DefaultClearanceHeight, logger)
	det := detection.NewService(detectors, violations, notifier, logger)
	agg := stats.NewAggregator(reg, violations, notifier, logger)
	router := ingest.NewRouter(reg, det, logger)

	// Liveness sweep for DETECTOR_OFFLINE events.
	watcher := registry.NewWatcher(reg, notifier, cfg.LivenessSweepInterval, logger)
	go watcher.Run(ctx)

	// MQTT ingest
	subscriber, err := ingest.NewMQTTSubscriber(ingest.MQTTConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		QoS:      cfg.MQTTQoS,
		Topic:    cfg.MQTTTopic,
	}, router, logger)
	if err != nil {
		logger.Fatal("failed to connect to MQTT broker", zap.Error(err))
	}
	defer subscriber.Stop()
	if err := subscriber.Start(ctx); err != nil {
		logger.Fatal("failed to subscribe", zap.Error(err))
	}

	// HTTP API + WebSocket stream
	api := httpapi.NewServer(reg, det, agg, hub, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("http server error", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	logger.Info("clearance monitor stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
