package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caption-merge-service/internal/app"
	"caption-merge-service/internal/config"
	httpapi "caption-merge-service/internal/http"
	"caption-merge-service/internal/ingest"
	"caption-merge-service/internal/merge"
	"caption-merge-service/internal/notify"
	"caption-merge-service/internal/observability"
	"caption-merge-service/internal/store"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("startup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keyed store: Redis in production, in-memory for local runs.
	var (
		lineStore   store.Store
		redisStore  *store.Redis
		listSource  *ingest.RedisListSource
		fragmentBuf = ingest.NewBuffer()
	)
	switch cfg.Store.Backend {
	case "memory":
		lineStore = store.NewMemory()
		application.Logger.Info().Msg("Using in-memory store")
	default:
		var err error
		redisStore, err = store.NewRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisDB)
		if err != nil {
			application.Logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisStore.Close()
		lineStore = redisStore
	}

	// Fragment sources. The Redis list drainer shares the store
	// connection; the Kafka consumer runs its own loop.
	if cfg.Ingest.RedisListEnabled && redisStore != nil {
		listSource = ingest.NewRedisListSource(redisStore.Client(), cfg.Ingest.RedisListKey, fragmentBuf)
	}
	kafkaSource := ingest.NewKafkaSource(&ingest.KafkaConfig{
		Enabled: cfg.Ingest.KafkaEnabled,
		Brokers: cfg.Ingest.KafkaBrokers,
		Topic:   cfg.Ingest.KafkaTopic,
		GroupID: cfg.Ingest.KafkaGroupID,
	}, fragmentBuf)
	defer kafkaSource.Close()
	go kafkaSource.Run(ctx)

	// Merge engine: single instance owns all sessions.
	engine := merge.New(lineStore, fragmentBuf, listSource, merge.Config{
		Window:       cfg.Merge.Window,
		TickInterval: cfg.Merge.TickInterval,
		SessionTTL:   cfg.Merge.SessionTTL,
	}, application.Logger)
	go engine.Run(ctx)

	// Notification layer: websocket hub plus the change-detection loop.
	hub := notify.NewHub(cfg.Notify.WriteTimeout)
	notifier := notify.NewNotifier(lineStore, hub, cfg.Notify.TickInterval, application.Logger)
	go notifier.Run(ctx)

	// Public HTTP surface and observability server.
	router := httpapi.NewRouter(lineStore, hub, notifier)
	httpServer := httpapi.NewServer(":"+cfg.Service.HTTPPort, router)
	httpServer.Start()

	obsServer := observability.NewServer(":" + cfg.Service.MetricsPort)
	obsServer.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	application.Logger.Info().Msg("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error().Err(err).Msg("observability shutdown error")
	}
	hub.CloseAll()
	application.Shutdown()
}
