package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"catalog/internal/api"
	"catalog/internal/config"
	"catalog/internal/enrich"
	"catalog/internal/fetch"
	"catalog/internal/monitoring"
	"catalog/internal/pipeline"
	"catalog/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	client, err := fetch.NewClient(cfg)
	if err != nil {
		logger.Fatal("could not build HTTP client", zap.Error(err))
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	cacheStore := store.NewCacheStore(cfg.CachePath, logger)
	tracker := store.NewTracker(cacheStore, metrics, logger)

	fetcher := fetch.NewPageFetcher(client, cfg, metrics, logger)
	enricher := enrich.NewEnricher(client, cfg, metrics, logger)
	pipe := pipeline.New(cfg, fetcher, enricher, cacheStore, tracker, metrics, logger)

	server := api.NewServer(cfg, pipe, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
