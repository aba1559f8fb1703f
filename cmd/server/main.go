package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shopscout/aggregatorservice/internal/aggregate"
	apihttp "shopscout/aggregatorservice/internal/api/http"
	"shopscout/aggregatorservice/internal/app"
	"shopscout/aggregatorservice/internal/metrics"
	"shopscout/aggregatorservice/internal/providers/amazon"
	"shopscout/aggregatorservice/internal/providers/bestbuy"
	"shopscout/aggregatorservice/internal/providers/shortsapi"
	"shopscout/aggregatorservice/internal/providers/tiktok"
	"shopscout/aggregatorservice/internal/providers/walmart"
	"shopscout/aggregatorservice/internal/shortvideo"
	"shopscout/aggregatorservice/internal/store"
	"shopscout/aggregatorservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "product-aggregator")
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	httpClient := &http.Client{
		Timeout:   cfg.ProviderTimeout + 2*time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	providers := []aggregate.Provider{
		amazon.NewProvider(amazon.Config{
			Endpoint:  cfg.AmazonEndpoint,
			APIKey:    cfg.AmazonAPIKey,
			UserAgent: cfg.UserAgent,
			Client:    httpClient,
		}),
		walmart.NewProvider(walmart.Config{
			Endpoint:  cfg.WalmartEndpoint,
			APIKey:    cfg.WalmartAPIKey,
			UserAgent: cfg.UserAgent,
			Client:    httpClient,
		}),
		bestbuy.NewProvider(bestbuy.Config{
			Endpoint:  cfg.BestBuyEndpoint,
			APIKey:    cfg.BestBuyAPIKey,
			UserAgent: cfg.UserAgent,
			Client:    httpClient,
		}),
	}

	videoProviders := []shortvideo.Provider{
		tiktok.NewProvider(tiktok.Config{
			Endpoint:  cfg.TikTokEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    httpClient,
		}),
		shortsapi.NewProvider(shortsapi.Config{
			Endpoint:  cfg.ShortsEndpoint,
			APIKey:    cfg.ShortsAPIKey,
			UserAgent: cfg.UserAgent,
			Client:    httpClient,
		}),
	}

	aggregateOpts := []aggregate.ServiceOption{
		aggregate.WithCacheTTL(cfg.SearchCacheTTL),
		aggregate.WithCacheDisabled(cfg.CacheDisabled),
	}

	var itemStore aggregate.Store = store.NewMemory()
	var videoStore shortvideo.VideoStore = itemStore.(*store.Memory)

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, using in-memory cache and store",
				slog.String("error", err.Error()))
		} else {
			client := redis.NewClient(redisOpts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = client.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				logger.Warn("redis unreachable, using in-memory cache and store",
					slog.String("error", err.Error()))
				_ = client.Close()
			} else {
				logger.Info("redis connected")
				aggregateOpts = append(aggregateOpts,
					aggregate.WithRedisCache(aggregate.NewRedisCacheBackend(client)))
				redisStore := store.NewRedis(client)
				itemStore = redisStore
				videoStore = redisStore
			}
		}
	}
	aggregateOpts = append(aggregateOpts, aggregate.WithStore(itemStore))

	aggregator := aggregate.NewService(providers, cfg.ProviderTimeout, aggregateOpts...)
	videos := shortvideo.NewService(videoProviders, cfg.ProviderTimeout,
		shortvideo.WithCacheTTL(cfg.ShortVideoCacheTTL),
		shortvideo.WithVideoStore(videoStore),
	)

	server := apihttp.NewServer(aggregator,
		apihttp.WithShortVideos(videos),
		apihttp.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func newLogger(cfg app.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, options)
	} else {
		handler = slog.NewTextHandler(os.Stdout, options)
	}
	return slog.New(handler)
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
