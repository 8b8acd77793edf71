package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mitraverify/verify-engine/internal/analyzers"
	"github.com/mitraverify/verify-engine/internal/api"
	"github.com/mitraverify/verify-engine/internal/cache"
	"github.com/mitraverify/verify-engine/internal/config"
	"github.com/mitraverify/verify-engine/internal/engine"
	"github.com/mitraverify/verify-engine/internal/metrics"
	"github.com/mitraverify/verify-engine/internal/repo"
	"github.com/mitraverify/verify-engine/internal/services"
	"github.com/mitraverify/verify-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mitraverify engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:        cfg.Cache.Addr,
			Username:    cfg.Cache.Username,
			Password:    cfg.Cache.Password,
			DB:          cfg.Cache.DB,
			DialTimeout: cfg.Cache.DialTimeout,
		})
		if err != nil {
			logger.Warn("result cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	inferenceClient := repo.NewInferenceClient(
		cfg.Inference.BaseURL,
		cfg.Inference.PredictPath,
		cfg.Inference.ModelName,
		cfg.Inference.Timeout,
	)

	evidenceRepo, err := repo.NewEvidenceRepo(
		cfg.Evidence.WeaviateEndpoint,
		cfg.Evidence.WeaviateAPIKey,
		cfg.Evidence.CorpusPath,
		cfg.Evidence.Threshold,
		cfg.Evidence.Timeout,
		cacheProvider,
		cfg.Cache.EvidenceTTL,
	)
	if err != nil {
		logger.Error("failed to load evidence corpus", slog.Any("error", err))
		os.Exit(1)
	}

	hashRegistry, err := repo.NewHashRegistry(cfg.Images.HashRegistryPath)
	if err != nil {
		logger.Error("failed to load image hash registry", slog.Any("error", err))
		os.Exit(1)
	}

	textAnalyzer := analyzers.NewTextAnalyzer(inferenceClient, cfg.Inference.ModelName, logger)
	imageAnalyzer := analyzers.NewImageAnalyzer(hashRegistry, logger)

	fusionEngine := engine.NewFusionEngine(logger, textAnalyzer, imageAnalyzer, evidenceRepo)
	verifyService := services.NewVerifyService(
		logger,
		fusionEngine,
		evidenceRepo,
		cacheProvider,
		cfg.Cache.ResultTTL,
		cfg.Server.RequestTimeout,
	)

	server := api.NewServer(cfg.Server, verifyService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("mitraverify engine stopped")
}
