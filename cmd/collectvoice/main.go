package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/config"
	"github.com/collectvoice/collectvoice/internal/httpapi"
	"github.com/collectvoice/collectvoice/internal/logging"
	"github.com/collectvoice/collectvoice/internal/observability"
	"github.com/collectvoice/collectvoice/internal/realtime"
	"github.com/collectvoice/collectvoice/internal/resolver"
	"github.com/collectvoice/collectvoice/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogFile)
	defer logger.Sync()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	callStore := store.New()

	var res resolver.Resolver
	if cfg.MockMode() {
		res = resolver.NewCSVResolver(cfg.MockDataFile, logger)
		logger.Info("customer resolver: local csv", zap.String("file", cfg.MockDataFile))
	} else {
		res = resolver.NewCollektoClient(resolver.CollektoConfig{
			BaseURL: cfg.CollektoBaseURL,
			Primary: resolver.Credentials{
				Username: cfg.CollektoUsername,
				Password: cfg.CollektoPassword,
			},
			Fallback: resolver.Credentials{
				Username: cfg.CollektoFallbackUsername,
				Password: cfg.CollektoFallbackPassword,
			},
			Timeout: cfg.CollektoTimeout,
		}, logger, metrics)
		logger.Info("customer resolver: collekto", zap.String("base_url", cfg.CollektoBaseURL))
	}

	rtCfg := realtime.Config{
		Endpoint:   cfg.AzureOpenAIEndpoint,
		APIKey:     cfg.AzureOpenAIAPIKey,
		Deployment: cfg.AzureOpenAIDeployment,
		APIVersion: cfg.AzureAPIVersion,
		Voice:      cfg.RealtimeVoice,
		Debounce:   cfg.ResponseDebounce,
	}

	connect := func(ctx context.Context, rec store.CustomerRecord, cb realtime.Callbacks, callLog *zap.Logger) (httpapi.RealtimeConn, error) {
		client := realtime.NewClient(rtCfg, rec, cb, callLog, metrics)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}

	api := httpapi.New(cfg, logger, callStore, res, connect, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
